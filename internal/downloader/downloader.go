// Package downloader fetches remote page images into local storage.
package downloader

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/noah-isme/church-news-api/pkg/config"
	appErrors "github.com/noah-isme/church-news-api/pkg/errors"
	"github.com/noah-isme/church-news-api/pkg/storage"
)

const (
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	defaultTimeout   = 60 * time.Second
	fallbackMime     = "image/jpeg"
)

// Asset describes a stored download.
type Asset struct {
	StoredPath string
	ByteSize   int64
	MimeType   string
}

// Downloader streams remote files into LocalStorage.
type Downloader struct {
	client  *http.Client
	storage *storage.LocalStorage
	cfg     config.DownloaderConfig
	logger  *zap.Logger
}

// New constructs a downloader. A nil client gets one bounded by the configured timeout.
func New(cfg config.DownloaderConfig, store *storage.LocalStorage, client *http.Client, logger *zap.Logger) *Downloader {
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Downloader{client: client, storage: store, cfg: cfg, logger: logger}
}

// Fetch downloads remoteURL to destination (relative to the storage base),
// overwriting any previous file there.
func (d *Downloader) Fetch(ctx context.Context, remoteURL, destination string) (*Asset, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, remoteURL, nil)
	if err != nil {
		return nil, downloadError(remoteURL, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("User-Agent", d.cfg.UserAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, downloadError(remoteURL, fmt.Errorf("request asset: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, downloadError(remoteURL, fmt.Errorf("asset returned %s", resp.Status))
	}

	path, size, err := d.storage.SaveStream(destination, resp.Body)
	if err != nil {
		return nil, downloadError(remoteURL, err)
	}

	asset := &Asset{StoredPath: path, ByteSize: size, MimeType: d.detectMime(resp.Header.Get("Content-Type"), path)}
	d.logger.Debug("asset downloaded",
		zap.String("url", remoteURL),
		zap.String("path", path),
		zap.Int64("bytes", size),
		zap.String("mime", asset.MimeType),
	)
	return asset, nil
}

// Open returns the stored bytes of a previously fetched asset.
func (d *Downloader) Open(path string) ([]byte, error) {
	return d.storage.ReadFile(path)
}

// Purge removes a stored directory tree, e.g. the pages of a previous run.
func (d *Downloader) Purge(dir string) error {
	return d.storage.DeleteDir(dir)
}

// detectMime prefers the server's Content-Type and sniffs the stored file when
// the header is missing or generic.
func (d *Downloader) detectMime(header, path string) string {
	if header != "" {
		if mediaType, _, err := mime.ParseMediaType(header); err == nil && mediaType != "application/octet-stream" {
			return mediaType
		}
	}
	detected, err := mimetype.DetectFile(path)
	if err != nil {
		return fallbackMime
	}
	if strings.HasPrefix(detected.String(), "image/") {
		return detected.String()
	}
	return fallbackMime
}

func downloadError(remoteURL string, err error) error {
	return appErrors.Wrap(err, appErrors.ErrDownloadFailed.Code, appErrors.ErrDownloadFailed.Status, fmt.Sprintf("download %s failed", remoteURL))
}
