package splits

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/JaimeStill/panscan/internal/artifacts"
	"github.com/JaimeStill/panscan/pkg/handlers"
	"github.com/JaimeStill/panscan/pkg/openapi"
	"github.com/JaimeStill/panscan/pkg/routes"
	"github.com/JaimeStill/panscan/pkg/upload"
)

// Handler provides HTTP endpoints for split operations.
type Handler struct {
	sys           System
	logger        *slog.Logger
	maxUploadSize int64
	spoolDir      string
}

// NewHandler creates a Handler that spools uploads under spoolDir.
func NewHandler(sys System, logger *slog.Logger, maxUploadSize int64, spoolDir string) *Handler {
	return &Handler{
		sys:           sys,
		logger:        logger.With("handler", "splits"),
		maxUploadSize: maxUploadSize,
		spoolDir:      spoolDir,
	}
}

// Routes returns the route group definition for split endpoints.
func (h *Handler) Routes() routes.Group {
	idParam := openapi.PathParam("id", "Split ID")

	return routes.Group{
		Prefix:      "/splits",
		Tags:        []string{"Splits"},
		Description: "Partition oversized scan CSVs into bounded-size parts",
		Schemas:     schemas,
		Routes: []routes.Route{
			{
				Method:  "POST",
				Pattern: "",
				Handler: h.Create,
				OpenAPI: &openapi.Operation{
					Summary:     "Split an uploaded CSV when it exceeds the row threshold",
					RequestBody: openapi.RequestBodyMultipart("file", "CSV file to split"),
					Responses: map[int]*openapi.Response{
						200: openapi.ResponseJSON("At or under the threshold; nothing stored", "Split"),
						201: openapi.ResponseJSON("Split into parts", "Split"),
						400: openapi.ResponseRef("BadRequest"),
						413: openapi.ResponseRef("PayloadTooLarge"),
						422: openapi.ResponseRef("UnprocessableEntity"),
					},
				},
			},
			{
				Method:  "GET",
				Pattern: "/{id}",
				Handler: h.Find,
				OpenAPI: &openapi.Operation{
					Summary:    "Get split metadata and parts",
					Parameters: []*openapi.Parameter{idParam},
					Responses: map[int]*openapi.Response{
						200: openapi.ResponseJSON("Split", "Split"),
						404: openapi.ResponseRef("NotFound"),
					},
				},
			},
			{
				Method:  "GET",
				Pattern: "/{id}/parts/{number}",
				Handler: h.DownloadPart,
				OpenAPI: &openapi.Operation{
					Summary: "Download one part",
					Parameters: []*openapi.Parameter{
						idParam,
						{Name: "number", In: "path", Required: true, Description: "1-based part number", Schema: &openapi.Schema{Type: "integer"}},
					},
					Responses: map[int]*openapi.Response{
						200: openapi.ResponseFile("Part CSV", artifacts.ContentTypeCSV),
						400: openapi.ResponseRef("BadRequest"),
						404: openapi.ResponseRef("NotFound"),
					},
				},
			},
			{
				Method:  "GET",
				Pattern: "/{id}/archive",
				Handler: h.Archive,
				OpenAPI: &openapi.Operation{
					Summary:    "Download every part as a zip archive",
					Parameters: []*openapi.Parameter{idParam},
					Responses: map[int]*openapi.Response{
						200: openapi.ResponseFile("Zip of all parts", "application/zip"),
						404: openapi.ResponseRef("NotFound"),
					},
				},
			},
			{
				Method:  "DELETE",
				Pattern: "/{id}",
				Handler: h.Delete,
				OpenAPI: &openapi.Operation{
					Summary:    "Delete a split and its parts",
					Parameters: []*openapi.Parameter{idParam},
					Responses: map[int]*openapi.Response{
						204: {Description: "Split deleted"},
						404: openapi.ResponseRef("NotFound"),
					},
				},
			},
		},
	}
}

// Create spools the multipart "file" field and splits it if needed.
// Responds 201 when parts were published and 200 when the file was small enough.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	file, err := upload.Receive(w, r, "file", h.maxUploadSize, h.spoolDir)
	if err != nil {
		err = uploadError(err)
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	defer func() {
		if err := file.Remove(); err != nil {
			h.logger.Warn("spool cleanup failed", "path", file.Path, "error", err)
		}
	}()

	result, err := h.sys.Create(r.Context(), CreateCommand{Filename: file.Name, Path: file.Path})
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	status := http.StatusOK
	if result.Split {
		status = http.StatusCreated
	}
	handlers.RespondJSON(w, status, result)
}

// Find returns a split by its UUID path parameter.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	result, err := h.sys.Find(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// DownloadPart streams one part as Split_<n>_<base>.csv.
func (h *Handler) DownloadPart(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	number, err := strconv.Atoi(r.PathValue("number"))
	if err != nil || number < 1 {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidPart)
		return
	}

	part, body, err := h.sys.DownloadPart(r.Context(), id, number)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	defer body.Close()

	if err := handlers.ServeAttachment(w, body, part.Filename, artifacts.ContentTypeCSV, part.SizeBytes); err != nil {
		h.logger.Warn("download interrupted", "id", id, "part", number, "error", err)
	}
}

// Archive streams a zip of every part of the split.
func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	if _, err := h.sys.Find(r.Context(), id); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", ArchiveName(id)))

	if err := h.sys.Archive(r.Context(), id, w); err != nil {
		h.logger.Error("archive failed after response started", "id", id, "error", err)
	}
}

// Delete removes a split and all of its parts.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	if err := h.sys.Delete(r.Context(), id); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}

var schemas = map[string]*openapi.Schema{
	"SplitPart": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"number":       {Type: "integer"},
			"filename":     {Type: "string", Example: "Split_1_scan.csv"},
			"display_name": {Type: "string", Example: "Part 1"},
			"rows":         {Type: "integer"},
			"size_bytes":   {Type: "integer"},
			"storage_key":  {Type: "string"},
		},
	},
	"Split": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"id":         {Type: "string", Format: "uuid"},
			"split":      {Type: "boolean"},
			"source":     {Type: "string"},
			"total_rows": {Type: "integer"},
			"threshold":  {Type: "integer"},
			"chunk_size": {Type: "integer"},
			"message":    {Type: "string", Example: "File has 12,345 rows. No splitting needed (threshold: 1,000,000 rows)."},
			"parts":      {Type: "array", Items: openapi.SchemaRef("SplitPart")},
			"created_at": {Type: "string", Format: "date-time"},
		},
	},
}
