package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/church-news-api/pkg/config"
	appErrors "github.com/noah-isme/church-news-api/pkg/errors"
)

const boardHTML = `
<html><body>
  <div class="view">
    <img src="https://cdn.test/UserData/files/66/65505/002.jpg" alt="002.jpg">
    <img src="https://CDN.test/UserData/files/66/65505/001.jpg#top" title="001.jpg">
    <img src="/static/logo.png" alt="logo">
    <img alt="no source">
  </div>
  <div class="files">
    <a class="each-file" filename="001.jpg">001.jpg</a>
    <a class="each-file" filename="003.jpg" data-href="/download/003.jpg">003.jpg</a>
    <a class="each-file" filename="004.JPG">004.JPG</a>
    <a class="each-file" filename="notes.pdf">notes.pdf</a>
    <a class="each-file">broken</a>
  </div>
</body></html>`

func newTestScraper(t *testing.T) *Scraper {
	t.Helper()
	return New(config.ScraperConfig{CDNHost: "cdn.test", CDNFileBase: "https://cdn.test/files/66"}, nil, nil)
}

func TestDiscoverPagesMergesMethods(t *testing.T) {
	var gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(boardHTML))
	}))
	defer srv.Close()

	pages, err := newTestScraper(t).DiscoverPages(context.Background(), srv.URL+"/Board/Detail/66/65505")
	require.NoError(t, err)
	assert.Contains(t, gotAgent, "Mozilla/5.0")

	require.Len(t, pages, 4)
	assert.Equal(t, []int{1, 2, 3, 4}, []int{pages[0].PageNumber, pages[1].PageNumber, pages[2].PageNumber, pages[3].PageNumber})

	assert.Equal(t, "001.jpg", pages[0].FileName)
	assert.Equal(t, "https://CDN.test/UserData/files/66/65505/001.jpg#top", pages[0].URL)
	assert.Equal(t, srv.URL+"/download/003.jpg", pages[2].URL)
	assert.Equal(t, "https://cdn.test/files/66/65505/004.JPG", pages[3].URL)
}

func TestDiscoverPagesEmptyIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><p>준비중입니다</p></body></html>`))
	}))
	defer srv.Close()

	pages, err := newTestScraper(t).DiscoverPages(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Empty(t, pages)
}

func TestDiscoverPagesNon2xxIsSourceUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestScraper(t).DiscoverPages(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrSourceUnreachable))
}

func TestDiscoverPagesTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newTestScraper(t).DiscoverPages(context.Background(), url)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrSourceUnreachable))
}

func TestMergeUsesPositionWhenNoPageHint(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`
<img src="https://cdn.test/a/cover.jpg">
<img src="https://cdn.test/a/back.jpg?v=2" alt="">`))
	require.NoError(t, err)

	pages := Merge(doc, Source{CDNHost: "cdn.test"}, DefaultMethods(), nil)
	require.Len(t, pages, 2)
	assert.Equal(t, 1, pages[0].PageNumber)
	assert.Equal(t, "cover.jpg", pages[0].FileName)
	assert.Equal(t, 2, pages[1].PageNumber)
	assert.Equal(t, "back.jpg", pages[1].FileName)
}

func TestMergeCustomMethodOrder(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<p></p>`))
	require.NoError(t, err)

	first := Method{Name: "first", Extract: func(*goquery.Document, Source) []Page {
		return []Page{{URL: "https://x.test/p.jpg", FileName: "first", PageNumber: 2}}
	}}
	second := Method{Name: "second", Extract: func(*goquery.Document, Source) []Page {
		return []Page{
			{URL: "HTTPS://X.TEST/p.jpg#frag", FileName: "dup", PageNumber: 2},
			{URL: "", FileName: "empty", PageNumber: 1},
			{URL: "https://x.test/q.jpg", FileName: "second", PageNumber: 1},
		}
	}}

	pages := Merge(doc, Source{}, []Method{first, second}, nil)
	require.Len(t, pages, 2)
	assert.Equal(t, "second", pages[0].FileName)
	assert.Equal(t, "first", pages[1].FileName)
}

func TestNormalizeURL(t *testing.T) {
	assert.Equal(t, "https://cdn.test/A/001.jpg", NormalizeURL("  HTTPS://CDN.Test/A/001.jpg#x "))
	assert.Equal(t, NormalizeURL("https://cdn.test/a.jpg"), NormalizeURL("https://cdn.test/a.jpg#b"))
}
