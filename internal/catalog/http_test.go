package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestGetSummariesBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/books", r.URL.Path)
		assert.Equal(t, "b1,b2,b3", r.URL.Query().Get("ids"))

		_ = json.NewEncoder(w).Encode([]bookPayload{
			{ID: "b1", Title: "Piranesi", PageCount: 272, GenreNames: []string{"fantasy"}},
			{ID: "b2", Title: "Project Hail Mary", AudioLengthSeconds: 58320},
		})
	}))
	defer srv.Close()

	gw := NewHTTPGateway(srv.URL, time.Second, zap.NewNop())

	books, err := gw.GetSummaries(context.Background(), []string{"b1", "b2", "b3"})
	require.NoError(t, err)
	require.Len(t, books, 3)

	assert.Equal(t, "Piranesi", books["b1"].Title)
	assert.Equal(t, 272, books["b1"].PageCount)
	assert.Equal(t, 58320, books["b2"].AudioLengthSeconds)

	// the catalog did not know b3
	assert.Equal(t, "Book information unavailable", books["b3"].Title)
}

func TestGetSummariesEmptyInput(t *testing.T) {
	gw := NewHTTPGateway("http://unreachable.invalid", time.Second, zap.NewNop())

	books, err := gw.GetSummaries(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, books)
}

func TestGetSummariesErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	gw := NewHTTPGateway(srv.URL, time.Second, zap.NewNop())

	_, err := gw.GetSummaries(context.Background(), []string{"b1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog status 500")
}

func TestGetSummariesTransportError(t *testing.T) {
	gw := NewHTTPGateway("http://127.0.0.1:1", 200*time.Millisecond, zap.NewNop())

	_, err := gw.GetSummaries(context.Background(), []string{"b1"})
	require.Error(t, err)
}
