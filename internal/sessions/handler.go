package sessions

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/JaimeStill/panscan/internal/artifacts"
	"github.com/JaimeStill/panscan/pkg/handlers"
	"github.com/JaimeStill/panscan/pkg/openapi"
	"github.com/JaimeStill/panscan/pkg/pagination"
	"github.com/JaimeStill/panscan/pkg/routes"
)

// Handler provides HTTP endpoints for bulk scan sessions.
type Handler struct {
	sys        System
	logger     *slog.Logger
	pagination pagination.Config
}

// NewHandler creates a Handler with the given system, logger, and pagination config.
func NewHandler(sys System, logger *slog.Logger, pagination pagination.Config) *Handler {
	return &Handler{
		sys:        sys,
		logger:     logger.With("handler", "sessions"),
		pagination: pagination,
	}
}

// Routes returns the route group definition for session endpoints.
func (h *Handler) Routes() routes.Group {
	idParam := openapi.PathParam("id", "Session ID")

	return routes.Group{
		Prefix:      "/sessions",
		Tags:        []string{"Sessions"},
		Description: "Bulk classification of every CSV in a server-side folder",
		Schemas:     schemas,
		Routes: []routes.Route{
			{
				Method:  "POST",
				Pattern: "",
				Handler: h.Create,
				OpenAPI: &openapi.Operation{
					Summary:     "Start a session over a folder of CSV files",
					RequestBody: openapi.RequestBodyJSON("CreateSession", true),
					Responses: map[int]*openapi.Response{
						201: openapi.ResponseJSON("Session created", "Session"),
						400: openapi.ResponseRef("BadRequest"),
					},
				},
			},
			{
				Method:  "GET",
				Pattern: "",
				Handler: h.List,
				OpenAPI: &openapi.Operation{
					Summary: "List sessions, newest first",
					Parameters: []*openapi.Parameter{
						openapi.QueryParam("page", "integer", "Page number", false),
						openapi.QueryParam("page_size", "integer", "Results per page", false),
						openapi.QueryParam("search", "string", "Folder path filter", false),
					},
					Responses: map[int]*openapi.Response{
						200: openapi.ResponseJSON("Page of sessions", "SessionPage"),
					},
				},
			},
			{
				Method:  "GET",
				Pattern: "/{id}",
				Handler: h.Find,
				OpenAPI: &openapi.Operation{
					Summary:    "Get per-file results and the merged total",
					Parameters: []*openapi.Parameter{idParam},
					Responses: map[int]*openapi.Response{
						200: openapi.ResponseJSON("Session detail", "SessionDetail"),
						404: openapi.ResponseRef("NotFound"),
					},
				},
			},
			{
				Method:  "POST",
				Pattern: "/{id}/files",
				Handler: h.ProcessFile,
				OpenAPI: &openapi.Operation{
					Summary:     "Classify one file of the session",
					Parameters:  []*openapi.Parameter{idParam},
					RequestBody: openapi.RequestBodyJSON("ProcessFile", true),
					Responses: map[int]*openapi.Response{
						200: openapi.ResponseJSON("File result", "FileResult"),
						400: openapi.ResponseRef("BadRequest"),
						404: openapi.ResponseRef("NotFound"),
						422: openapi.ResponseRef("UnprocessableEntity"),
					},
				},
			},
			{
				Method:  "POST",
				Pattern: "/{id}/run",
				Handler: h.Run,
				OpenAPI: &openapi.Operation{
					Summary:    "Classify every file of the session",
					Parameters: []*openapi.Parameter{idParam},
					Responses: map[int]*openapi.Response{
						200: openapi.ResponseJSON("Session detail", "SessionDetail"),
						404: openapi.ResponseRef("NotFound"),
					},
				},
			},
			{
				Method:  "GET",
				Pattern: "/{id}/files/{name}/download",
				Handler: h.Download,
				OpenAPI: &openapi.Operation{
					Summary: "Download the reviewed copy of one file",
					Parameters: []*openapi.Parameter{
						idParam,
						openapi.PathString("name", "Source file name"),
					},
					Responses: map[int]*openapi.Response{
						200: openapi.ResponseFile("Reviewed CSV", artifacts.ContentTypeCSV),
						404: openapi.ResponseRef("NotFound"),
					},
				},
			},
			{
				Method:  "GET",
				Pattern: "/{id}/archive",
				Handler: h.Archive,
				OpenAPI: &openapi.Operation{
					Summary:    "Download every reviewed file as a zip archive",
					Parameters: []*openapi.Parameter{idParam},
					Responses: map[int]*openapi.Response{
						200: openapi.ResponseFile("Zip of reviewed files", "application/zip"),
						404: openapi.ResponseRef("NotFound"),
					},
				},
			},
			{
				Method:  "DELETE",
				Pattern: "/{id}",
				Handler: h.Delete,
				OpenAPI: &openapi.Operation{
					Summary:    "Delete a session and its outputs",
					Parameters: []*openapi.Parameter{idParam},
					Responses: map[int]*openapi.Response{
						204: {Description: "Session deleted"},
						404: openapi.ResponseRef("NotFound"),
					},
				},
			},
		},
	}
}

// Create validates the requested folder and starts a session.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var cmd CreateCommand
	if err := handlers.Bind(r, &cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	s, err := h.sys.Create(r.Context(), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, s)
}

// List returns a page of sessions.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)

	result, err := h.sys.List(r.Context(), page)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Find returns the session detail.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	d, err := h.sys.Find(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, d)
}

// ProcessFile classifies the file named in the request body.
func (h *Handler) ProcessFile(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	var cmd ProcessCommand
	if err := handlers.Bind(r, &cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	res, err := h.sys.ProcessFile(r.Context(), id, cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, res)
}

// Run classifies every file of the session and returns the resulting detail.
func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	d, err := h.sys.Run(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, d)
}

// Download streams the reviewed copy of one session file.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	name := r.PathValue("name")

	res, body, err := h.sys.Download(r.Context(), id, name)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	defer body.Close()

	if err := handlers.ServeAttachment(w, body, res.Output, artifacts.ContentTypeCSV, 0); err != nil {
		h.logger.Warn("download interrupted", "id", id, "file", name, "error", err)
	}
}

// Archive streams a zip of every reviewed file as BulkScan_Results_<id>.zip.
func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	d, err := h.sys.Find(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	if len(d.Completed()) == 0 {
		handlers.RespondError(w, h.logger, http.StatusNotFound, ErrNothingToArchive)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", ArchiveName(id)))

	if err := h.sys.Archive(r.Context(), id, w); err != nil {
		h.logger.Error("archive failed after response started", "id", id, "error", err)
	}
}

// Delete removes a session and everything it published.
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
	"CreateSession": {
		Type:     "object",
		Required: []string{"folder_path"},
		Properties: map[string]*openapi.Schema{
			"folder_path": {Type: "string", Description: "Server-side folder containing CSV files", Example: "/data/scans/2026-01"},
		},
	},
	"ProcessFile": {
		Type:     "object",
		Required: []string{"file_name"},
		Properties: map[string]*openapi.Schema{
			"file_name": {Type: "string", Example: "host01.csv"},
		},
	},
	"Session": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"id":          {Type: "string", Format: "uuid"},
			"folder_path": {Type: "string"},
			"files":       {Type: "array", Items: &openapi.Schema{Type: "string"}},
			"created_at":  {Type: "string", Format: "date-time"},
		},
	},
	"FileResult": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"file":        {Type: "string"},
			"status":      {Type: "string", Enum: []any{StatusPending, StatusComplete, StatusFailed}},
			"stats":       openapi.SchemaRef("Stats"),
			"output":      {Type: "string", Example: "Reviewed_host01.csv"},
			"storage_key": {Type: "string"},
			"error":       {Type: "string"},
		},
	},
	"SessionDetail": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"id":          {Type: "string", Format: "uuid"},
			"folder_path": {Type: "string"},
			"files":       {Type: "array", Items: &openapi.Schema{Type: "string"}},
			"created_at":  {Type: "string", Format: "date-time"},
			"results":     {Type: "array", Items: openapi.SchemaRef("FileResult")},
			"total":       openapi.SchemaRef("Stats"),
			"processed":   {Type: "integer"},
			"failed":      {Type: "integer"},
		},
	},
	"SessionPage": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"data":        {Type: "array", Items: openapi.SchemaRef("Session")},
			"total":       {Type: "integer"},
			"page":        {Type: "integer"},
			"page_size":   {Type: "integer"},
			"total_pages": {Type: "integer"},
		},
	},
}
