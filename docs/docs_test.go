package docs

import (
	"encoding/json"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readDoc(t *testing.T) map[string]interface{} {
	t.Helper()
	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(SwaggerInfo.ReadDoc()), &parsed), "ReadDoc should return valid JSON")
	return parsed
}

func TestSwaggerInfoMetadata(t *testing.T) {
	assert.Equal(t, "Linear Stagehand Tests API", SwaggerInfo.Title)
	assert.Equal(t, "1.0", SwaggerInfo.Version)
	assert.Equal(t, "/", SwaggerInfo.BasePath)
	assert.Equal(t, "swagger", SwaggerInfo.InfoInstanceName)
	assert.Contains(t, SwaggerInfo.Description, "acceptance criteria")

	doc := readDoc(t)
	info := doc["info"].(map[string]interface{})
	assert.Equal(t, SwaggerInfo.Title, info["title"])
	assert.Equal(t, "/", doc["basePath"])
	assert.Equal(t, "2.0", doc["swagger"])
}

func TestSwaggerPaths(t *testing.T) {
	paths, ok := readDoc(t)["paths"].(map[string]interface{})
	require.True(t, ok, "JSON should have paths section")

	tests := map[string][]string{
		"/health":                      {"get"},
		"/webhooks/linear":             {"post"},
		"/internal/queue":              {"get"},
		"/internal/runs":               {"get"},
		"/internal/runs/{ticketId}":    {"get", "post", "delete"},
		"/internal/results":            {"get"},
		"/internal/results/{ticketId}": {"get"},
		"/internal/history":            {"get"},
	}

	for path, methods := range tests {
		t.Run(path, func(t *testing.T) {
			ops, ok := paths[path].(map[string]interface{})
			require.True(t, ok, "path %s should be documented", path)
			for _, m := range methods {
				assert.Contains(t, ops, m)
			}
		})
	}
}

func TestSwaggerDefinitions(t *testing.T) {
	definitions, ok := readDoc(t)["definitions"].(map[string]interface{})
	require.True(t, ok, "JSON should have definitions section")

	for _, name := range []string{
		"handlers.RunAcceptedResponse",
		"handlers.RunConflictResponse",
		"handlers.TriggerRunRequest",
		"handlers.HealthResponse",
		"database.PoolStats",
		"taskqueue.Status",
		"types.Result",
	} {
		assert.Contains(t, definitions, name)
	}
}

var refPattern = regexp.MustCompile(`"#/definitions/([^"]+)"`)

func TestSwaggerReferencesResolve(t *testing.T) {
	doc := SwaggerInfo.ReadDoc()
	definitions := readDoc(t)["definitions"].(map[string]interface{})

	refs := refPattern.FindAllStringSubmatch(doc, -1)
	require.NotEmpty(t, refs)
	for _, ref := range refs {
		assert.Contains(t, definitions, ref[1], "dangling reference %s", ref[1])
	}
}
