package reviews

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/JaimeStill/panscan/internal/artifacts"
	"github.com/JaimeStill/panscan/pkg/handlers"
	"github.com/JaimeStill/panscan/pkg/openapi"
	"github.com/JaimeStill/panscan/pkg/routes"
	"github.com/JaimeStill/panscan/pkg/upload"
)

// Handler provides HTTP endpoints for review operations.
type Handler struct {
	sys           System
	logger        *slog.Logger
	maxUploadSize int64
	spoolDir      string
}

// NewHandler creates a Handler. Uploads larger than maxUploadSize are rejected
// and accepted uploads are spooled under spoolDir.
func NewHandler(sys System, logger *slog.Logger, maxUploadSize int64, spoolDir string) *Handler {
	return &Handler{
		sys:           sys,
		logger:        logger.With("handler", "reviews"),
		maxUploadSize: maxUploadSize,
		spoolDir:      spoolDir,
	}
}

// Routes returns the route group definition for review endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix:      "/reviews",
		Tags:        []string{"Reviews"},
		Description: "Classify a single scan CSV and download the annotated copy",
		Schemas:     schemas,
		Routes: []routes.Route{
			{
				Method:  "POST",
				Pattern: "",
				Handler: h.Create,
				OpenAPI: &openapi.Operation{
					Summary:     "Review an uploaded scan CSV",
					Description: "Classifies every row against the rule table and publishes Reviewed_<name>.",
					RequestBody: openapi.RequestBodyMultipart("file", "Scan result CSV with a filename column"),
					Responses: map[int]*openapi.Response{
						201: openapi.ResponseJSON("Review created", "Review"),
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
					Summary:    "Get review metadata and statistics",
					Parameters: []*openapi.Parameter{openapi.PathParam("id", "Review ID")},
					Responses: map[int]*openapi.Response{
						200: openapi.ResponseJSON("Review", "Review"),
						400: openapi.ResponseRef("BadRequest"),
						404: openapi.ResponseRef("NotFound"),
					},
				},
			},
			{
				Method:  "GET",
				Pattern: "/{id}/download",
				Handler: h.Download,
				OpenAPI: &openapi.Operation{
					Summary:    "Download the annotated CSV",
					Parameters: []*openapi.Parameter{openapi.PathParam("id", "Review ID")},
					Responses: map[int]*openapi.Response{
						200: openapi.ResponseFile("Annotated CSV", artifacts.ContentTypeCSV),
						404: openapi.ResponseRef("NotFound"),
					},
				},
			},
			{
				Method:  "DELETE",
				Pattern: "/{id}",
				Handler: h.Delete,
				OpenAPI: &openapi.Operation{
					Summary:    "Delete a review and its output",
					Parameters: []*openapi.Parameter{openapi.PathParam("id", "Review ID")},
					Responses: map[int]*openapi.Response{
						204: {Description: "Review deleted"},
						404: openapi.ResponseRef("NotFound"),
					},
				},
			},
		},
	}
}

// Create spools the multipart "file" field and reviews it.
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

	review, err := h.sys.Create(r.Context(), CreateCommand{
		Filename: file.Name,
		Path:     file.Path,
	})
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, review)
}

// Find returns a review by its UUID path parameter.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidID)
		return
	}

	review, err := h.sys.Find(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, review)
}

// Download streams the annotated CSV as an attachment named Reviewed_<name>.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidID)
		return
	}

	review, body, err := h.sys.Download(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	defer body.Close()

	if err := handlers.ServeAttachment(w, body, review.Filename, artifacts.ContentTypeCSV, review.SizeBytes); err != nil {
		h.logger.Warn("download interrupted", "id", id, "error", err)
	}
}

// Delete removes a review by its UUID path parameter.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidID)
		return
	}

	if err := h.sys.Delete(r.Context(), id); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

var schemas = map[string]*openapi.Schema{
	"Review": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"id":          {Type: "string", Format: "uuid"},
			"source":      {Type: "string", Description: "Uploaded filename"},
			"filename":    {Type: "string", Example: "Reviewed_scan.csv"},
			"storage_key": {Type: "string"},
			"size_bytes":  {Type: "integer"},
			"rules":       {Type: "integer", Description: "Rules in the table used for this review"},
			"stats":       openapi.SchemaRef("Stats"),
			"created_at":  {Type: "string", Format: "date-time"},
		},
	},
}
