package downloader

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/church-news-api/pkg/config"
	appErrors "github.com/noah-isme/church-news-api/pkg/errors"
	"github.com/noah-isme/church-news-api/pkg/storage"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func newTestDownloader(t *testing.T) (*Downloader, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	return New(config.DownloaderConfig{}, store, nil, nil), store.Base()
}

func TestFetchStoresAssetAndUsesContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg; charset=binary")
		_, _ = w.Write([]byte("jpeg-bytes"))
	}))
	defer srv.Close()

	d, base := newTestDownloader(t)
	asset, err := d.Fetch(context.Background(), srv.URL+"/001.jpg", "7/001.jpg")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "7", "001.jpg"), asset.StoredPath)
	assert.Equal(t, int64(len("jpeg-bytes")), asset.ByteSize)
	assert.Equal(t, "image/jpeg", asset.MimeType)

	data, err := d.Open(asset.StoredPath)
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))
}

func TestFetchSniffsMimeWhenHeaderIsGeneric(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(pngHeader)
	}))
	defer srv.Close()

	d, _ := newTestDownloader(t)
	asset, err := d.Fetch(context.Background(), srv.URL, "1/002.png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", asset.MimeType)
}

func TestFetchOverwritesExistingFile(t *testing.T) {
	body := "first"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	d, _ := newTestDownloader(t)
	_, err := d.Fetch(context.Background(), srv.URL, "3/001.jpg")
	require.NoError(t, err)

	body = "second-version"
	asset, err := d.Fetch(context.Background(), srv.URL, "3/001.jpg")
	require.NoError(t, err)
	data, err := os.ReadFile(asset.StoredPath)
	require.NoError(t, err)
	assert.Equal(t, "second-version", string(data))
}

func TestFetchNon2xxIsDownloadFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	d, base := newTestDownloader(t)
	_, err := d.Fetch(context.Background(), srv.URL, "4/001.jpg")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrDownloadFailed))

	_, statErr := os.Stat(filepath.Join(base, "4", "001.jpg"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestFetchRejectsEscapingDestination(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	d, _ := newTestDownloader(t)
	_, err := d.Fetch(context.Background(), srv.URL, "../outside.jpg")
	require.Error(t, err)
	assert.True(t, errors.Is(err, storage.ErrOutsideBase))
	assert.True(t, errors.Is(err, appErrors.ErrDownloadFailed))
}

func TestPurgeRemovesIssueDirectory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("page"))
	}))
	defer srv.Close()

	d, base := newTestDownloader(t)
	_, err := d.Fetch(context.Background(), srv.URL, "issue_9/001.jpg")
	require.NoError(t, err)

	require.NoError(t, d.Purge("issue_9"))
	_, statErr := os.Stat(filepath.Join(base, "issue_9"))
	assert.True(t, os.IsNotExist(statErr))
}
