package parser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/dgallion1/docstruct/internal/doctree"
)

// DefaultMaxFetchBytes caps a fetched document.
const DefaultMaxFetchBytes = 50 << 20

// Fetcher downloads a document by URL and parses it. A direct fetch is tried
// first; if it fails and a proxy is configured, the proxy is asked instead.
type Fetcher struct {
	client   *http.Client
	proxyURL string
	log      *slog.Logger
	attempts uint
	delay    time.Duration
	maxBytes int64
	opts     Options
}

type FetcherOption func(*Fetcher)

// WithProxy sets the fallback proxy. A "{url}" placeholder is replaced by
// the escaped target; otherwise the target is passed as the url query
// parameter.
func WithProxy(proxyURL string) FetcherOption {
	return func(f *Fetcher) { f.proxyURL = proxyURL }
}

func WithFetchLogger(log *slog.Logger) FetcherOption {
	return func(f *Fetcher) { f.log = log }
}

func WithFetchRetry(attempts uint, delay time.Duration) FetcherOption {
	return func(f *Fetcher) { f.attempts, f.delay = attempts, delay }
}

func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) { f.client = c }
}

func NewFetcher(opts Options, fopts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:   &http.Client{Timeout: 60 * time.Second},
		log:      slog.Default(),
		attempts: 3,
		delay:    time.Second,
		maxBytes: DefaultMaxFetchBytes,
		opts:     opts,
	}
	for _, o := range fopts {
		o(f)
	}
	return f
}

// Fetched is a downloaded document before parsing.
type Fetched struct {
	Data        []byte
	ContentType string
	Filename    string
	ViaProxy    bool
}

// Fetch downloads rawURL and parses it by its content type.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*doctree.DocTree, error) {
	fetched, err := f.Download(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return ParseBytes(fetched.Data, fetched.Filename, f.opts)
}

// Download retrieves rawURL without parsing it.
func (f *Fetcher) Download(ctx context.Context, rawURL string) (*Fetched, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid document url %q", rawURL)
	}

	data, ctype, err := f.get(ctx, rawURL)
	viaProxy := false
	if err != nil && f.proxyURL != "" && ctx.Err() == nil {
		f.log.Warn("direct fetch failed, trying proxy", "url", rawURL, "error", err)
		data, ctype, err = f.get(ctx, f.proxied(rawURL))
		viaProxy = true
	}
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}

	f.log.Info("document fetched", "url", rawURL, "bytes", len(data), "content_type", ctype, "via_proxy", viaProxy)
	return &Fetched{
		Data:        data,
		ContentType: ctype,
		Filename:    fetchedFilename(u, ctype),
		ViaProxy:    viaProxy,
	}, nil
}

func (f *Fetcher) proxied(target string) string {
	if strings.Contains(f.proxyURL, "{url}") {
		return strings.ReplaceAll(f.proxyURL, "{url}", url.QueryEscape(target))
	}
	sep := "?"
	if strings.Contains(f.proxyURL, "?") {
		sep = "&"
	}
	return f.proxyURL + sep + "url=" + url.QueryEscape(target)
}

func (f *Fetcher) get(ctx context.Context, target string) (data []byte, ctype string, err error) {
	err = retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("User-Agent", "docstruct/1.0")
			resp, err := f.client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				statusErr := fmt.Errorf("status %d", resp.StatusCode)
				if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
					return statusErr
				}
				return retry.Unrecoverable(statusErr)
			}

			body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
			if err != nil {
				return err
			}
			if int64(len(body)) > f.maxBytes {
				return retry.Unrecoverable(fmt.Errorf("document exceeds %d bytes", f.maxBytes))
			}
			data, ctype = body, resp.Header.Get("Content-Type")
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(max(f.attempts, 1)),
		retry.Delay(f.delay),
		retry.LastErrorOnly(true),
	)
	if err != nil && errors.Is(err, context.Canceled) {
		return nil, "", ctx.Err()
	}
	return data, ctype, err
}

var extByMediaType = map[string]string{
	"text/html":             ".html",
	"application/xhtml+xml": ".html",
	"application/pdf":       ".pdf",
	"text/markdown":         ".md",
	"text/x-markdown":       ".md",
	"text/csv":              ".csv",
	"text/plain":            ".txt",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": ".docx",
}

// fetchedFilename names a download so ForFile can pick its parser. The
// content type wins over the URL extension; HTML is assumed otherwise.
func fetchedFilename(u *url.URL, contentType string) string {
	base := path.Base(u.Path)
	stem, ext := base, ""
	if base == "/" || base == "." {
		base, stem = u.Host, u.Host
	} else {
		ext = path.Ext(base)
		stem = strings.TrimSuffix(base, ext)
	}
	ext = strings.ToLower(ext)

	mediaType, _, _ := mime.ParseMediaType(contentType)
	if want, ok := extByMediaType[mediaType]; ok {
		if ext == want || (want == ".html" && ext == ".htm") || (want == ".md" && ext == ".markdown") {
			return base
		}
		return stem + want
	}
	if SupportedExtensions[ext] {
		return base
	}
	return base + ".html"
}
