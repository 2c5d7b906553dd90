package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = "sender,subject,body,sent_date\na@x.com,Help,Need support,2024-01-01\n"

func TestCSVSourceFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "emails.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o644))

	src := NewCSVSource(path, 0, 0)
	assert.Equal(t, "csv:"+path, src.Name())

	records, err := src.Records(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Need support", records[0].Get(FieldBody))
}

func TestCSVSourceMissingFileIsUnavailable(t *testing.T) {
	src := NewCSVSource(filepath.Join(t.TempDir(), "nope.csv"), ',', 0)

	records, err := src.Records(context.Background())
	assert.Nil(t, records)
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	assert.Empty(t, LoadOrEmpty(context.Background(), src))
}

func TestCSVSourceEmptyInputIsNotAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	records, err := NewCSVSource(path, ',', 0).Records(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, records)
}

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.csv" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(sampleCSV))
	}))
	defer srv.Close()

	src := NewCSVSource(srv.URL+"/emails.csv", ',', time.Second)
	_, isHTTP := src.Fetcher.(HTTPFetcher)
	assert.True(t, isHTTP)

	records, err := src.Records(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 1)

	_, err = NewCSVSource(srv.URL+"/missing.csv", ',', time.Second).Records(context.Background())
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestFileFetcherHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := FileFetcher{Path: "whatever"}.Fetch(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStaticSourceCopies(t *testing.T) {
	src := StaticSource{{ID: "email_1", Fields: map[string]string{FieldSubject: "x"}}}
	got, err := src.Records(context.Background())
	require.NoError(t, err)
	got[0].ID = "changed"
	assert.Equal(t, "email_1", src[0].ID)
}
