// Package edgar implements a client for the SEC EDGAR registry.
//
// It resolves ticker symbols to CIK identifiers via the bulk company-tickers
// directory, locates filings in the per-company submissions feed, and
// downloads filing documents with HTML-to-text extraction. All outbound
// requests carry the mandatory identification User-Agent header and are paced
// by a shared inter-request throttle, per SEC fair-access policy.
//
// Known limitations: only the submissions feed's recent block is consulted
// (very long filing histories are split into sub-files that are not fetched),
// and the ticker directory is a point-in-time snapshot: a company whose CIK
// changed after a corporate action resolves to whatever the snapshot says.
package edgar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/seenimoa/secqa/internal/infra"
	"github.com/seenimoa/secqa/pkg/models"
)

const (
	// DefaultBaseURL serves the ticker directory, filing documents, and the
	// browse-edgar Atom feeds.
	DefaultBaseURL = "https://www.sec.gov"

	// DefaultDataBaseURL serves the JSON submissions API.
	DefaultDataBaseURL = "https://data.sec.gov"

	// DefaultRequestDelay keeps a single process well under EDGAR's
	// 10 requests/second ceiling.
	DefaultRequestDelay = 150 * time.Millisecond

	// DefaultTimeout bounds each registry request.
	DefaultTimeout = 30 * time.Second

	// DefaultCachePath is where the ticker directory snapshot is persisted.
	DefaultCachePath = "company_tickers.json"
)

// Sentinel errors. Lookup misses (ErrTickerNotFound, ErrNoFilings) are
// expected outcomes callers branch on; the rest terminate the request.
var (
	// ErrTickerNotFound means the ticker is absent from the loaded directory.
	ErrTickerNotFound = errors.New("ticker not found in company directory")

	// ErrNoFilings means the CIK is valid but no filing matched the requested
	// form type or date range.
	ErrNoFilings = errors.New("no matching filings")

	// ErrEmptyDocument means text extraction produced no usable content.
	// Callers should try an alternate filing rather than pass blank context on.
	ErrEmptyDocument = errors.New("document contained no extractable text")
)

// Config holds EDGAR client settings.
type Config struct {
	// UserAgent identifies the requester (contact name and email). EDGAR
	// rejects or throttles requests without it; NewClient requires it.
	UserAgent string

	// CachePath is the filesystem path for the ticker directory snapshot.
	CachePath string

	// UseCache reads the directory from CachePath when the file exists,
	// avoiding the bulk download.
	UseCache bool

	// RequestDelay is the minimum delay between consecutive registry calls.
	RequestDelay time.Duration

	// Timeout bounds each HTTP request.
	Timeout time.Duration

	// BaseURL and DataBaseURL override the registry endpoints (tests).
	BaseURL     string
	DataBaseURL string
}

func (c Config) withDefaults() Config {
	if c.CachePath == "" {
		c.CachePath = DefaultCachePath
	}
	if c.RequestDelay == 0 {
		c.RequestDelay = DefaultRequestDelay
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.DataBaseURL == "" {
		c.DataBaseURL = DefaultDataBaseURL
	}
	return c
}

// transport is the shared HTTP layer for all EDGAR calls: one http.Client,
// one throttle, one identification header.
type transport struct {
	client    *http.Client
	throttle  *infra.Throttle
	userAgent string
}

// get performs a throttled GET with the mandatory identification header.
// Accept-Encoding is left to net/http: setting it by hand would disable the
// transport's transparent gzip decoding and hand compressed bytes to the
// parsers.
func (t *transport) get(ctx context.Context, url, accept string) (io.ReadCloser, string, error) {
	if err := t.throttle.Wait(ctx); err != nil {
		return nil, "", err
	}
	return infra.DoGet(ctx, t.client, url, map[string]string{
		"User-Agent": t.userAgent,
		"Accept":     accept,
	})
}

// Client is the composed EDGAR registry client. Construct one per process and
// share it; there is no package-level state.
type Client struct {
	Directory *Directory
	Locator   *Locator
	Documents *Documents
	Watcher   *Watcher
}

// NewClient creates an EDGAR client from cfg. The identification UserAgent is
// mandatory per SEC policy.
func NewClient(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, errors.New("edgar: UserAgent is required (SEC mandates an identification header, e.g. \"Jane Doe jane@example.com\")")
	}
	cfg = cfg.withDefaults()

	tr := &transport{
		client:    &http.Client{Timeout: cfg.Timeout},
		throttle:  infra.NewThrottle(cfg.RequestDelay),
		userAgent: cfg.UserAgent,
	}

	return &Client{
		Directory: newDirectory(tr, cfg.BaseURL, cfg.CachePath, cfg.UseCache),
		Locator:   newLocator(tr, cfg.DataBaseURL),
		Documents: newDocuments(tr, cfg.BaseURL),
		Watcher:   newWatcher(tr, cfg.BaseURL),
	}, nil
}

// Resolve looks up a ticker in the directory, loading it on first use.
func (c *Client) Resolve(ctx context.Context, ticker string) (models.Company, error) {
	if err := c.Directory.Load(ctx); err != nil {
		return models.Company{}, fmt.Errorf("load ticker directory: %w", err)
	}
	return c.Directory.Resolve(ticker)
}

// FilingText resolves ticker, locates the newest filing of the given form
// type (restricted to the calendar year when year > 0), downloads it, and
// returns the extracted text. Errors identify the stage that failed.
func (c *Client) FilingText(ctx context.Context, ticker, form string, year int) (*models.FilingDocument, error) {
	company, err := c.Resolve(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("resolve ticker %q: %w", ticker, err)
	}
	return c.CompanyFilingText(ctx, company, form, year)
}

// CompanyFilingText is FilingText for an already-resolved company.
func (c *Client) CompanyFilingText(ctx context.Context, company models.Company, form string, year int) (*models.FilingDocument, error) {
	var filing models.Filing
	var err error
	if year > 0 {
		start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
		matches, ferr := c.Locator.SearchByDateRange(ctx, company.CIK, form, start, end)
		if ferr != nil {
			return nil, fmt.Errorf("locate %s filing for %s in %d: %w", form, company.Name, year, ferr)
		}
		filing = matches[0]
	} else {
		filing, err = c.Locator.Latest(ctx, company.CIK, form)
		if err != nil {
			return nil, fmt.Errorf("locate %s filing for %s: %w", form, company.Name, err)
		}
	}

	doc, err := c.Documents.Download(ctx, filing)
	if err != nil {
		return nil, fmt.Errorf("download filing %s: %w", filing.AccessionNumber, err)
	}
	return doc, nil
}
