package openapi_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/panscan/pkg/openapi"
)

func TestNewSpec(t *testing.T) {
	spec := openapi.NewSpec("Test API", "1.0.0")

	assert.Equal(t, "3.1.0", spec.OpenAPI)
	assert.Equal(t, "Test API", spec.Info.Title)
	assert.Equal(t, "1.0.0", spec.Info.Version)
	require.NotNil(t, spec.Components)
	require.NotNil(t, spec.Paths)
}

func TestAddServerAndDescription(t *testing.T) {
	spec := openapi.NewSpec("Test", "1.0.0")
	spec.AddServer("http://localhost:8080")
	spec.SetDescription("A test API")

	require.Len(t, spec.Servers, 1)
	assert.Equal(t, "http://localhost:8080", spec.Servers[0].URL)
	assert.Equal(t, "A test API", spec.Info.Description)
}

func TestRefs(t *testing.T) {
	assert.Equal(t, "#/components/schemas/Review", openapi.SchemaRef("Review").Ref)
	assert.Equal(t, "#/components/responses/NotFound", openapi.ResponseRef("NotFound").Ref)

	rb := openapi.RequestBodyJSON("CreateSession", true)
	assert.True(t, rb.Required)
	assert.Equal(t, "#/components/schemas/CreateSession", rb.Content["application/json"].Schema.Ref)

	resp := openapi.ResponseJSON("Created", "Review")
	assert.Equal(t, "Created", resp.Description)
	assert.Equal(t, "#/components/schemas/Review", resp.Content["application/json"].Schema.Ref)
}

func TestParams(t *testing.T) {
	id := openapi.PathParam("id", "Session ID")
	assert.Equal(t, "path", id.In)
	assert.True(t, id.Required)
	assert.Equal(t, "uuid", id.Schema.Format)

	name := openapi.PathString("name", "File name")
	assert.True(t, name.Required)
	assert.Empty(t, name.Schema.Format)

	q := openapi.QueryParam("prefix", "string", "Key prefix", false)
	assert.Equal(t, "query", q.In)
	assert.False(t, q.Required)
}

func TestMultipartAndFile(t *testing.T) {
	rb := openapi.RequestBodyMultipart("file", "CSV scan export")
	media := rb.Content["multipart/form-data"]
	require.NotNil(t, media)
	assert.Equal(t, []string{"file"}, media.Schema.Required)
	assert.Equal(t, "binary", media.Schema.Properties["file"].Format)

	resp := openapi.ResponseFile("Reviewed CSV", "text/csv")
	assert.Equal(t, "binary", resp.Content["text/csv"].Schema.Format)
}

func TestNewComponentsDefaults(t *testing.T) {
	c := openapi.NewComponents()

	for _, name := range []string{"Error", "Stats", "PageRequest"} {
		assert.Contains(t, c.Schemas, name)
	}
	for _, name := range []string{"BadRequest", "NotFound", "PayloadTooLarge", "UnprocessableEntity"} {
		assert.Contains(t, c.Responses, name)
	}

	c.AddSchemas(map[string]*openapi.Schema{"Review": {Type: "object"}})
	c.AddResponses(map[string]*openapi.Response{"Conflict": {Description: "conflict"}})
	assert.Contains(t, c.Schemas, "Review")
	assert.Contains(t, c.Schemas, "Stats")
	assert.Contains(t, c.Responses, "Conflict")
}

func TestServeSpec(t *testing.T) {
	data, err := openapi.MarshalJSON(openapi.NewSpec("Test", "1.0.0"))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	openapi.ServeSpec(data)(rec, httptest.NewRequest("GET", "/openapi.json", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
	assert.Equal(t, "3.1.0", parsed["openapi"])
}

func TestConfigFinalize(t *testing.T) {
	cfg := openapi.Config{}
	require.NoError(t, cfg.Finalize(nil))
	assert.Equal(t, "PANScan API", cfg.Title)
	assert.NotEmpty(t, cfg.Description)

	t.Setenv("TEST_TITLE", "Custom API")
	env := &openapi.ConfigEnv{Title: "TEST_TITLE"}

	custom := openapi.Config{}
	require.NoError(t, custom.Finalize(env))
	assert.Equal(t, "Custom API", custom.Title)
}

func TestConfigMerge(t *testing.T) {
	base := openapi.Config{Title: "Base", Description: "kept"}
	base.Merge(&openapi.Config{Title: "Overlay"})

	assert.Equal(t, "Overlay", base.Title)
	assert.Equal(t, "kept", base.Description)
}
