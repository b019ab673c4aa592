package openapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humaecho"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/restock-tracker/api/openapi"
)

type pingOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

func newServer(t *testing.T) *echo.Echo {
	t.Helper()

	e := echo.New()
	api := humaecho.New(e, huma.DefaultConfig("restock-tracker", "test"))
	openapi.RegisterRoutes(e, api)

	huma.Register(api, huma.Operation{
		OperationID: "ping",
		Method:      http.MethodGet,
		Path:        "/api/v1/ping",
	}, func(context.Context, *struct{}) (*pingOutput, error) {
		return &pingOutput{}, nil
	})
	return e
}

func get(e *echo.Echo, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, http.NoBody))
	return rec
}

func TestRegisterRoutes_JSON(t *testing.T) {
	t.Parallel()

	rec := get(newServer(t), "/swagger/openapi.json")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, echo.MIMEApplicationJSON, rec.Header().Get(echo.HeaderContentType))

	var doc struct {
		Info  struct{ Title string } `json:"info"`
		Paths map[string]any         `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "restock-tracker", doc.Info.Title)
	assert.Contains(t, doc.Paths, "/api/v1/ping", "operations registered after the routes are included")
}

func TestRegisterRoutes_YAMLAndUI(t *testing.T) {
	t.Parallel()

	e := newServer(t)

	rec := get(e, "/swagger/openapi.yaml")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/api/v1/ping:")

	rec = get(e, "/swagger/index.html")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/swagger/openapi.json")

	for _, p := range []string{"/swagger", "/swagger/"} {
		rec = get(e, p)
		assert.Equal(t, http.StatusMovedPermanently, rec.Code, p)
		assert.Equal(t, "/swagger/index.html", rec.Header().Get(echo.HeaderLocation))
	}
}
