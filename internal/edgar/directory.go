package edgar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/seenimoa/secqa/pkg/models"
)

// Directory holds the ticker → company mapping from the bulk
// company_tickers.json directory. The mapping is loaded once (optionally from
// a local snapshot) and is read-only afterwards, so Resolve is safe for
// concurrent use once Load has returned.
type Directory struct {
	tr        *transport
	baseURL   string
	cachePath string
	useCache  bool

	mu       sync.RWMutex
	byTicker map[string]models.Company
	loaded   bool
}

func newDirectory(tr *transport, baseURL, cachePath string, useCache bool) *Directory {
	return &Directory{
		tr:        tr,
		baseURL:   baseURL,
		cachePath: cachePath,
		useCache:  useCache,
		byTicker:  make(map[string]models.Company),
	}
}

// Load populates the directory. Idempotent: subsequent calls return
// immediately once a load has succeeded. Use Reload to force a fresh fetch.
func (d *Directory) Load(ctx context.Context) error {
	d.mu.RLock()
	loaded := d.loaded
	d.mu.RUnlock()
	if loaded {
		return nil
	}
	return d.load(ctx)
}

// Reload discards the in-memory mapping and fetches the directory from the
// network, refreshing the local snapshot.
func (d *Directory) Reload(ctx context.Context) error {
	d.mu.Lock()
	d.loaded = false
	d.useCache = false
	d.mu.Unlock()
	return d.load(ctx)
}

func (d *Directory) load(ctx context.Context) error {
	var raw []byte
	var fromCache bool

	if d.useCache {
		if data, err := os.ReadFile(d.cachePath); err == nil {
			raw, fromCache = data, true
		}
		// Missing or unreadable snapshot falls through to a network fetch.
	}

	if raw == nil {
		data, err := d.fetch(ctx)
		if err != nil {
			return err
		}
		raw = data
		if err := os.WriteFile(d.cachePath, raw, 0o644); err != nil {
			// Non-fatal: lookups proceed from the in-memory result.
			log.Printf("edgar: writing ticker directory snapshot to %s failed: %v", d.cachePath, err)
		}
	}

	byTicker, err := parseDirectory(raw)
	if err != nil {
		if fromCache {
			// Corrupt snapshot: fall back to the network once.
			log.Printf("edgar: ticker directory snapshot %s unusable (%v), refetching", d.cachePath, err)
			data, ferr := d.fetch(ctx)
			if ferr != nil {
				return ferr
			}
			if byTicker, err = parseDirectory(data); err != nil {
				return err
			}
			if werr := os.WriteFile(d.cachePath, data, 0o644); werr != nil {
				log.Printf("edgar: writing ticker directory snapshot to %s failed: %v", d.cachePath, werr)
			}
		} else {
			return err
		}
	}

	d.mu.Lock()
	d.byTicker = byTicker
	d.loaded = true
	d.mu.Unlock()
	return nil
}

func (d *Directory) fetch(ctx context.Context) ([]byte, error) {
	url := d.baseURL + "/files/company_tickers.json"
	body, _, err := d.tr.get(ctx, url, "application/json")
	if err != nil {
		return nil, fmt.Errorf("fetch company tickers: %w", err)
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read company tickers: %w", err)
	}
	return data, nil
}

// parseDirectory decodes the bulk directory into a ticker-keyed map,
// validating each entry at the boundary.
func parseDirectory(raw []byte) (map[string]models.Company, error) {
	var entries map[string]tickerEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse company tickers JSON: %w", err)
	}

	byTicker := make(map[string]models.Company, len(entries))
	for key, e := range entries {
		cik := e.CIK.String()
		ticker := strings.ToUpper(strings.TrimSpace(e.Ticker))
		if cik == "" || ticker == "" {
			return nil, fmt.Errorf("parse company tickers JSON: entry %q missing cik_str or ticker", key)
		}
		byTicker[ticker] = models.Company{
			CIK:    padCIK(cik),
			Ticker: ticker,
			Name:   strings.TrimSpace(e.Title),
		}
	}
	return byTicker, nil
}

// Resolve looks up a ticker with a case-insensitive exact match. An absent
// ticker returns ErrTickerNotFound; that is an expected outcome, not a defect.
func (d *Directory) Resolve(ticker string) (models.Company, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	company, ok := d.byTicker[strings.ToUpper(strings.TrimSpace(ticker))]
	if !ok {
		return models.Company{}, fmt.Errorf("%w: %q", ErrTickerNotFound, ticker)
	}
	return company, nil
}

// Len returns the number of companies in the loaded directory.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byTicker)
}
