package store

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"video-rater/api/internal/rating"
)

// fakeSheetsAPI serves the two values endpoints the store uses.
type fakeSheetsAPI struct {
	mu       sync.Mutex
	grids    map[string][][]interface{}
	appended []map[string]interface{}
	queries  []string
	fail     bool
}

func (f *fakeSheetsAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		http.Error(w, `{"error":{"code":403,"message":"permission denied"}}`, http.StatusForbidden)
		return
	}
	const prefix = "/v4/spreadsheets/sheet-1/values/"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		http.NotFound(w, r)
		return
	}
	rng := strings.TrimPrefix(r.URL.Path, prefix)
	f.queries = append(f.queries, r.URL.RawQuery)

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet:
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"range":          rng,
			"majorDimension": "ROWS",
			"values":         f.grids[rng],
		})
	case r.Method == http.MethodPost && strings.HasSuffix(rng, ":append"):
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.appended = append(f.appended, body)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"spreadsheetId": "sheet-1"})
	default:
		http.Error(w, "unexpected", http.StatusBadRequest)
	}
}

func newFakeSheets(t *testing.T, api *fakeSheetsAPI) *Sheets {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	s, err := NewSheetsWithOptions(context.Background(), "sheet-1", "descriptions", "ratings",
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return s
}

func TestSheets_Records(t *testing.T) {
	api := &fakeSheetsAPI{grids: map[string][][]interface{}{
		"descriptions": {
			{"model", "description", "video_path", "notes"},
			{"m1", "a cat jumps", "clips/100.mp4", "x"},
			{"m2", "a cat leaps", "clips/100.mp4"},
			{"m3"},
		},
	}}
	s := newFakeSheets(t, api)

	got, err := s.Records(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []rating.DescriptionRow{
		{Model: "m1", Description: "a cat jumps", VideoPath: "clips/100.mp4"},
		{Model: "m2", Description: "a cat leaps", VideoPath: "clips/100.mp4"},
		{Model: "m3"},
	}, got)
	assert.Contains(t, api.queries[0], "valueRenderOption=FORMATTED_VALUE")
}

func TestSheets_RecordsEmptySheet(t *testing.T) {
	s := newFakeSheets(t, &fakeSheetsAPI{})
	got, err := s.Records(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = rating.NewSampler(s).Sample(context.Background(), "")
	assert.ErrorIs(t, err, rating.ErrNoVideos)
}

func TestSheets_AppendRowsSingleCall(t *testing.T) {
	api := &fakeSheetsAPI{}
	s := newFakeSheets(t, api)

	err := s.AppendRows(context.Background(), []rating.RatedRow{
		{DescriptionRow: rating.DescriptionRow{Model: "m1", Description: "d1", VideoPath: "v/1.mp4"}, Quality: "3", RaterName: "Bob"},
		{DescriptionRow: rating.DescriptionRow{Model: "m2", Description: "d2", VideoPath: "v/1.mp4"}, Quality: "5", RaterName: "Bob"},
	})
	require.NoError(t, err)

	require.Len(t, api.appended, 1)
	assert.Equal(t, []interface{}{
		[]interface{}{"m1", "d1", "v/1.mp4", "3", "Bob"},
		[]interface{}{"m2", "d2", "v/1.mp4", "5", "Bob"},
	}, api.appended[0]["values"])
	last := api.queries[len(api.queries)-1]
	assert.Contains(t, last, "valueInputOption=RAW")
	assert.Contains(t, last, "insertDataOption=INSERT_ROWS")

	require.NoError(t, s.AppendRows(context.Background(), nil))
	assert.Len(t, api.appended, 1, "empty batch makes no call")
}

func TestSheets_RatedPaths(t *testing.T) {
	api := &fakeSheetsAPI{grids: map[string][][]interface{}{
		"ratings": {
			{"m1", "d1", "v/1.mp4", "3", "Bob"},
			{"m1", "d1", "v/2.mp4", "3", "Alice"},
			{"short row"},
		},
	}}
	s := newFakeSheets(t, api)

	got, err := s.RatedPaths(context.Background(), "Bob")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"v/1.mp4": true}, got)
}

func TestSheets_Errors(t *testing.T) {
	s := newFakeSheets(t, &fakeSheetsAPI{fail: true})

	_, err := s.Records(context.Background())
	assert.ErrorContains(t, err, "sheets get descriptions")

	err = s.AppendRows(context.Background(), []rating.RatedRow{{Quality: "1", RaterName: "Bob"}})
	assert.ErrorContains(t, err, "sheets append ratings")
}

func TestNewSheets_EmptyID(t *testing.T) {
	_, err := NewSheetsWithOptions(context.Background(), " ", "d", "r", option.WithoutAuthentication())
	assert.Error(t, err)
}
