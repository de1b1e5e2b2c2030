package api

import (
	"log/slog"
	"net/http"
	"path"

	"github.com/JaimeStill/panscan/pkg/handlers"
	"github.com/JaimeStill/panscan/pkg/openapi"
	"github.com/JaimeStill/panscan/pkg/routes"
	"github.com/JaimeStill/panscan/pkg/storage"
)

type storageHandler struct {
	store       storage.System
	logger      *slog.Logger
	maxListSize int32
}

func newStorageHandler(
	store storage.System,
	logger *slog.Logger,
	maxListSize int32,
) *storageHandler {
	return &storageHandler{
		store:       store,
		logger:      logger.With("handler", "storage"),
		maxListSize: maxListSize,
	}
}

func (h *storageHandler) routes() routes.Group {
	keyParam := openapi.PathString("key", "Blob key")
	prefixParam := openapi.QueryParam("prefix", "string", "Key prefix", false)

	return routes.Group{
		Prefix:      "/storage",
		Tags:        []string{"Storage"},
		Description: "Inspection and cleanup of published outputs",
		Schemas:     storageSchemas,
		Routes: []routes.Route{
			{
				Method:  "GET",
				Pattern: "",
				Handler: h.list,
				OpenAPI: &openapi.Operation{
					Summary: "List stored blobs",
					Parameters: []*openapi.Parameter{
						prefixParam,
						openapi.QueryParam("marker", "string", "Continuation marker from a previous page", false),
						openapi.QueryParam("max_results", "integer", "Maximum blobs to return", false),
					},
					Responses: map[int]*openapi.Response{
						200: openapi.ResponseJSON("Blob page", "BlobList"),
						400: openapi.ResponseRef("BadRequest"),
					},
				},
			},
			{
				Method:  "DELETE",
				Pattern: "",
				Handler: h.deletePrefix,
				OpenAPI: &openapi.Operation{
					Summary: "Delete every blob under a prefix",
					Parameters: []*openapi.Parameter{
						openapi.QueryParam("prefix", "string", "Key prefix", true),
					},
					Responses: map[int]*openapi.Response{
						200: openapi.ResponseJSON("Blobs deleted", "DeleteResult"),
						400: openapi.ResponseRef("BadRequest"),
					},
				},
			},
			{
				Method:  "GET",
				Pattern: "/download/{key...}",
				Handler: h.download,
				OpenAPI: &openapi.Operation{
					Summary:    "Download a blob",
					Parameters: []*openapi.Parameter{keyParam},
					Responses: map[int]*openapi.Response{
						200: openapi.ResponseFile("Blob content", "application/octet-stream"),
						404: openapi.ResponseRef("NotFound"),
					},
				},
			},
			{
				Method:  "GET",
				Pattern: "/{key...}",
				Handler: h.find,
				OpenAPI: &openapi.Operation{
					Summary:    "Get blob metadata",
					Parameters: []*openapi.Parameter{keyParam},
					Responses: map[int]*openapi.Response{
						200: openapi.ResponseJSON("Blob metadata", "BlobMeta"),
						404: openapi.ResponseRef("NotFound"),
					},
				},
			},
		},
	}
}

func (h *storageHandler) list(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	marker := r.URL.Query().Get("marker")

	maxResults, err := storage.ParseMaxResults(
		r.URL.Query().Get("max_results"),
		h.maxListSize,
	)
	if err != nil {
		handlers.RespondError(
			w, h.logger,
			http.StatusBadRequest, err,
		)
		return
	}

	result, err := h.store.List(
		r.Context(),
		prefix,
		marker,
		maxResults,
	)
	if err != nil {
		handlers.RespondError(
			w, h.logger,
			storage.MapHTTPStatus(err), err,
		)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

func (h *storageHandler) deletePrefix(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")

	deleted, err := storage.DeletePrefix(r.Context(), h.store, prefix)
	if err != nil {
		handlers.RespondError(
			w, h.logger,
			storage.MapHTTPStatus(err), err,
		)
		return
	}

	h.logger.Info("outputs deleted", "prefix", prefix, "deleted", deleted)
	handlers.RespondJSON(w, http.StatusOK, map[string]any{
		"prefix":  prefix,
		"deleted": deleted,
	})
}

func (h *storageHandler) find(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	meta, err := h.store.Find(r.Context(), key)
	if err != nil {
		handlers.RespondError(
			w, h.logger,
			storage.MapHTTPStatus(err), err,
		)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, meta)
}

func (h *storageHandler) download(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	result, err := h.store.Download(r.Context(), key)
	if err != nil {
		handlers.RespondError(
			w, h.logger,
			storage.MapHTTPStatus(err), err,
		)
		return
	}
	defer result.Body.Close()

	if err := handlers.ServeAttachment(
		w, result.Body,
		path.Base(key),
		result.ContentType,
		result.ContentLength,
	); err != nil {
		h.logger.Warn("download interrupted", "key", key, "error", err)
	}
}

var storageSchemas = map[string]*openapi.Schema{
	"BlobMeta": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"key":            {Type: "string"},
			"content_type":   {Type: "string"},
			"content_length": {Type: "integer"},
			"last_modified":  {Type: "string", Format: "date-time"},
		},
	},
	"BlobList": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"blobs":       {Type: "array", Items: openapi.SchemaRef("BlobMeta")},
			"next_marker": {Type: "string"},
		},
	},
	"DeleteResult": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"prefix":  {Type: "string", Example: "reviews/"},
			"deleted": {Type: "integer"},
		},
	},
}
