package sheets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProbeNotConfigured(t *testing.T) {
	client := NewClient(Config{SpreadsheetID: "abc"}, nil)
	require.False(t, client.Configured())

	_, err := client.Probe(context.Background())
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestProbeCountsRowsAndColumns(t *testing.T) {
	var gotPath, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		_, _ = w.Write([]byte(`{"range":"Hoja1!A1:C3","majorDimension":"ROWS","values":[["a","b"],["c","d","e"],[]]}`))
	}))
	defer srv.Close()

	client := NewClient(Config{
		BaseURL:       srv.URL,
		SpreadsheetID: "sheet-1",
		Range:         "A1:C3",
		APIKey:        "k3y",
	}, srv.Client())

	result, err := client.Probe(context.Background())
	require.NoError(t, err)
	require.Equal(t, "/sheet-1/values/A1:C3", gotPath)
	require.Equal(t, "k3y", gotKey)
	require.Equal(t, "Hoja1!A1:C3", result.Range)
	require.Equal(t, 3, result.Rows)
	require.Equal(t, 3, result.Columns)
	require.Equal(t, "sheet-1", result.SpreadsheetID)
	require.False(t, result.CheckedAt.IsZero())
}

func TestProbeSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"API key not valid"}}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, SpreadsheetID: "s", APIKey: "bad"}, srv.Client())

	_, err := client.Probe(context.Background())
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusForbidden, statusErr.StatusCode)
	require.Equal(t, "API key not valid", statusErr.Message)
}
