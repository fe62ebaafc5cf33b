// Package scraper discovers the scanned page images of a newspaper issue
// from its board page.
package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/noah-isme/church-news-api/pkg/config"
	appErrors "github.com/noah-isme/church-news-api/pkg/errors"
)

const (
	defaultUserAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	defaultTimeout     = 30 * time.Second
	defaultCDNHost     = "data.dimode.co.kr"
	defaultCDNFileBase = "https://data.dimode.co.kr/UserData/anyangjeil/files/66"
)

var (
	pageNumberExpr = regexp.MustCompile(`(?i)(\d{3})\.(jpg|jpeg|png)`)
	imageExtExpr   = regexp.MustCompile(`(?i)\.(jpg|jpeg|png)`)
	boardIDExpr    = regexp.MustCompile(`/Detail/\d+/(\d+)`)
)

// Page describes one scanned page image found on the board page.
type Page struct {
	URL        string `json:"url"`
	FileName   string `json:"file_name"`
	PageNumber int    `json:"page_number"`
}

// Method is one independent extraction heuristic over a parsed board page.
type Method struct {
	Name    string
	Extract func(doc *goquery.Document, src Source) []Page
}

// Source carries what a method needs to resolve candidates.
type Source struct {
	Base        *url.URL
	BoardID     string
	CDNHost     string
	CDNFileBase string
}

// Resolve makes ref absolute against the board page URL.
func (s Source) Resolve(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	parsed, err := url.Parse(ref)
	if err != nil || s.Base == nil {
		return ""
	}
	return s.Base.ResolveReference(parsed).String()
}

// Scraper fetches board pages and runs the extraction methods in priority order.
type Scraper struct {
	client  *http.Client
	cfg     config.ScraperConfig
	logger  *zap.Logger
	methods []Method
}

// New constructs a scraper with the default method list.
func New(cfg config.ScraperConfig, client *http.Client, logger *zap.Logger) *Scraper {
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.CDNHost == "" {
		cfg.CDNHost = defaultCDNHost
	}
	if cfg.CDNFileBase == "" {
		cfg.CDNFileBase = defaultCDNFileBase
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scraper{
		client:  client,
		cfg:     cfg,
		logger:  logger,
		methods: DefaultMethods(),
	}
}

// DefaultMethods returns the heuristics in the order their results are trusted.
func DefaultMethods() []Method {
	return []Method{
		{Name: "cdn_images", Extract: cdnImages},
		{Name: "download_anchors", Extract: downloadAnchors},
		{Name: "image_fallback", Extract: imageFallback},
	}
}

// DiscoverPages returns the issue's page images sorted by page number.
// An empty result is not an error; only fetch or parse failures are.
func (s *Scraper) DiscoverPages(ctx context.Context, sourceURL string) ([]Page, error) {
	base, err := url.Parse(sourceURL)
	if err != nil || base.Host == "" {
		return nil, appErrors.Wrap(err, appErrors.ErrSourceUnreachable.Code, appErrors.ErrSourceUnreachable.Status, fmt.Sprintf("invalid source url %q", sourceURL))
	}

	started := time.Now()
	doc, err := s.fetchDocument(ctx, sourceURL)
	if err != nil {
		s.logger.Sugar().Errorw("scrape failed", "url", sourceURL, "error", err)
		return nil, appErrors.Wrap(err, appErrors.ErrSourceUnreachable.Code, appErrors.ErrSourceUnreachable.Status, appErrors.ErrSourceUnreachable.Message)
	}

	src := Source{Base: base, CDNHost: s.cfg.CDNHost, CDNFileBase: s.cfg.CDNFileBase}
	if m := boardIDExpr.FindStringSubmatch(base.Path); len(m) == 2 {
		src.BoardID = m[1]
	}

	pages := Merge(doc, src, s.methods, s.logger)
	s.logger.Sugar().Infow("scrape finished", "url", sourceURL, "pages", len(pages), "duration", time.Since(started))
	return pages, nil
}

func (s *Scraper) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("source returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

// Merge runs every method, keeps the first candidate per normalized URL and
// sorts the result by page number. Ties keep discovery order.
func Merge(doc *goquery.Document, src Source, methods []Method, logger *zap.Logger) []Page {
	if logger == nil {
		logger = zap.NewNop()
	}
	seen := make(map[string]struct{})
	pages := make([]Page, 0)
	for _, method := range methods {
		added := 0
		for _, candidate := range method.Extract(doc, src) {
			if candidate.URL == "" {
				continue
			}
			key := NormalizeURL(candidate.URL)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			pages = append(pages, candidate)
			added++
		}
		logger.Debug("scrape method applied", zap.String("method", method.Name), zap.Int("added", added))
	}
	sort.SliceStable(pages, func(i, j int) bool {
		return pages[i].PageNumber < pages[j].PageNumber
	})
	return pages
}

// NormalizeURL builds the dedup key: trimmed, scheme and host lowercased, fragment dropped.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""
	parsed.RawFragment = ""
	return parsed.String()
}

func cdnImages(doc *goquery.Document, src Source) []Page {
	var pages []Page
	doc.Find(fmt.Sprintf(`img[src*=%q]`, src.CDNHost)).Each(func(i int, sel *goquery.Selection) {
		raw, _ := sel.Attr("src")
		resolved := src.Resolve(raw)
		if resolved == "" {
			return
		}
		label := altOrTitle(sel)
		pages = append(pages, Page{
			URL:        resolved,
			FileName:   fileNameFor(label, resolved, i),
			PageNumber: pageNumber(i, label),
		})
	})
	return pages
}

func downloadAnchors(doc *goquery.Document, src Source) []Page {
	var pages []Page
	doc.Find("a.each-file[filename]").Each(func(i int, sel *goquery.Selection) {
		name := strings.TrimSpace(sel.AttrOr("filename", ""))
		if name == "" || !imageExtExpr.MatchString(name) {
			return
		}

		resolved := ""
		img := doc.Find("img").FilterFunction(func(_ int, s *goquery.Selection) bool {
			return s.AttrOr("alt", "") == name || s.AttrOr("title", "") == name
		}).First()
		if raw, ok := img.Attr("src"); ok {
			resolved = src.Resolve(raw)
		}
		if resolved == "" {
			resolved = src.Resolve(sel.AttrOr("data-href", ""))
		}
		if resolved == "" && src.BoardID != "" && src.CDNFileBase != "" {
			resolved = strings.TrimRight(src.CDNFileBase, "/") + "/" + src.BoardID + "/" + url.PathEscape(name)
		}
		if resolved == "" {
			return
		}

		pages = append(pages, Page{
			URL:        resolved,
			FileName:   name,
			PageNumber: pageNumber(i, name),
		})
	})
	return pages
}

func imageFallback(doc *goquery.Document, src Source) []Page {
	var pages []Page
	doc.Find(`img[src*=".jpg"], img[src*=".jpeg"], img[src*=".png"], img[src*=".JPG"], img[src*=".PNG"]`).Each(func(i int, sel *goquery.Selection) {
		raw, _ := sel.Attr("src")
		if !strings.Contains(raw, src.CDNHost) {
			return
		}
		resolved := src.Resolve(raw)
		if resolved == "" {
			return
		}
		label := altOrTitle(sel)
		pages = append(pages, Page{
			URL:        resolved,
			FileName:   fileNameFor(label, resolved, i),
			PageNumber: pageNumber(i, label, resolved),
		})
	})
	return pages
}

func altOrTitle(sel *goquery.Selection) string {
	if alt := strings.TrimSpace(sel.AttrOr("alt", "")); alt != "" {
		return alt
	}
	return strings.TrimSpace(sel.AttrOr("title", ""))
}

// pageNumber reads a three digit prefix such as "007.jpg" from the first
// matching hint, falling back to the 1-based position.
func pageNumber(index int, hints ...string) int {
	for _, hint := range hints {
		if m := pageNumberExpr.FindStringSubmatch(hint); len(m) == 3 {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
				return n
			}
		}
	}
	return index + 1
}

func fileNameFor(label, resolved string, index int) string {
	if m := pageNumberExpr.FindString(label); m != "" {
		return m
	}
	if parsed, err := url.Parse(resolved); err == nil {
		if base := path.Base(parsed.Path); base != "" && base != "/" && base != "." {
			if unescaped, err := url.PathUnescape(base); err == nil {
				return unescaped
			}
			return base
		}
	}
	return fmt.Sprintf("image_%d.jpg", index+1)
}
