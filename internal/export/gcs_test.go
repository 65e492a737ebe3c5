package export

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	gcs "cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func newTestUploader(t *testing.T, handler http.Handler) *GCSUploader {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := gcs.NewClient(context.Background(), option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	uploader, err := NewGCSUploader(client, "test-bucket")
	require.NoError(t, err)
	return uploader
}

func TestGCSUploaderUpload(t *testing.T) {
	file := filepath.Join(t.TempDir(), "works.csv")
	require.NoError(t, os.WriteFile(file, []byte("id,desc\n1,hello\n"), 0o600))

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/b/test-bucket/o")
		assert.Equal(t, "harvest/run/works.csv", r.URL.Query().Get("name"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Contains(t, string(body), "1,hello")

		fmt.Fprintln(w, `{"name": "harvest/run/works.csv", "bucket": "test-bucket"}`)
	})

	uri, err := newTestUploader(t, handler).Upload(context.Background(), file, "harvest/run/works.csv")
	require.NoError(t, err)
	assert.Equal(t, "gs://test-bucket/harvest/run/works.csv", uri)
}

func TestGCSUploaderServerError(t *testing.T) {
	file := filepath.Join(t.TempDir(), "works.csv")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := newTestUploader(t, handler).Upload(context.Background(), file, "obj")
	require.Error(t, err)
}

func TestGCSUploaderValidation(t *testing.T) {
	_, err := NewGCSUploader(nil, "bucket")
	require.Error(t, err)

	uploader := newTestUploader(t, http.NotFoundHandler())
	_, err = uploader.Upload(context.Background(), "missing.csv", "obj")
	require.Error(t, err)
	_, err = uploader.Upload(context.Background(), "missing.csv", " ")
	require.Error(t, err)
}
