package httpc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("weights"))
	}))
	defer srv.Close()

	dst := filepath.Join(t.TempDir(), "nested", "age_net.caffemodel")
	n, err := Download(context.Background(), srv.Client(), srv.URL, dst)
	require.NoError(t, err)
	assert.EqualValues(t, 7, n)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "weights", string(data))
}

func TestDownload_BadStatusLeavesNoFile(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	dir := t.TempDir()
	dst := filepath.Join(dir, "missing.onnx")
	_, err := Download(context.Background(), srv.Client(), srv.URL, dst)
	require.ErrorIs(t, err, ErrStatus)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDownload_Cancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Download(ctx, srv.Client(), srv.URL, filepath.Join(t.TempDir(), "x"))
	assert.Error(t, err)
}
