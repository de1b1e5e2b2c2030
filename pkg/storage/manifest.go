package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// WriteJSON stores v as an indented JSON document at key.
func WriteJSON(ctx context.Context, sys System, key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return sys.Upload(ctx, key, bytes.NewReader(data), "application/json")
}

// ReadJSON decodes the JSON document at key into v.
// Returns ErrNotFound if the blob does not exist.
func ReadJSON(ctx context.Context, sys System, key string, v any) error {
	blob, err := sys.Download(ctx, key)
	if err != nil {
		return err
	}
	defer blob.Body.Close()

	if err := json.NewDecoder(blob.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// ListAll follows List markers until every blob under prefix has been returned.
func ListAll(ctx context.Context, sys System, prefix string) ([]BlobMeta, error) {
	var (
		blobs  []BlobMeta
		marker string
	)

	for {
		page, err := sys.List(ctx, prefix, marker, MaxListCap)
		if err != nil {
			return nil, err
		}
		blobs = append(blobs, page.Blobs...)

		if page.NextMarker == "" {
			return blobs, nil
		}
		marker = page.NextMarker
	}
}
