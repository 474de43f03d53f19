package edgar

import (
	"encoding/json"
	"fmt"
	"time"
)

// --- Company Tickers (www.sec.gov/files/company_tickers.json) ---
// The endpoint returns a map keyed by row index:
// {"0": {"cik_str": 320193, "ticker": "AAPL", "title": "Apple Inc."}, ...}

// tickerEntry is a row from the CIK<->ticker mapping file.
// cik_str is numeric in the live file but has appeared as a string in older
// snapshots, hence json.Number.
type tickerEntry struct {
	CIK    json.Number `json:"cik_str"`
	Ticker string      `json:"ticker"`
	Title  string      `json:"title"`
}

// --- Submissions (data.sec.gov/submissions/CIK##########.json) ---

// submissionsResponse is the per-company submissions feed. Only the fields the
// locator consumes are declared; the feed carries much more.
type submissionsResponse struct {
	CIK     string           `json:"cik"`
	Name    string           `json:"name"`
	Tickers []string         `json:"tickers"`
	Filings submissionsIndex `json:"filings"`
}

type submissionsIndex struct {
	Recent filingSet        `json:"recent"`
	Files  []historySubfile `json:"files"`
}

// filingSet holds the feed's parallel arrays. Index i across all slices
// describes one filing, in most-recent-first order.
type filingSet struct {
	AccessionNumber []string `json:"accessionNumber"`
	FilingDate      []string `json:"filingDate"`
	Form            []string `json:"form"`
	PrimaryDocument []string `json:"primaryDocument"`
	Description     []string `json:"primaryDocDescription"`
}

// historySubfile points at an older chunk of a long filing history. The
// locator only reads the recent block; these are surfaced for diagnostics.
type historySubfile struct {
	Name        string `json:"name"`
	FilingCount int    `json:"filingCount"`
	FilingFrom  string `json:"filingFrom"`
	FilingTo    string `json:"filingTo"`
}

// parseFilingDate parses the feed's YYYY-MM-DD filing dates.
func parseFilingDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse filing date %q: %w", s, err)
	}
	return t, nil
}

// padCIK pads a CIK number to 10 digits with leading zeros, as required by the
// submissions endpoint path.
func padCIK(cik string) string {
	for len(cik) < 10 {
		cik = "0" + cik
	}
	return cik
}

// trimCIK strips leading zeros, as required by the Archives document path.
func trimCIK(cik string) string {
	for len(cik) > 1 && cik[0] == '0' {
		cik = cik[1:]
	}
	return cik
}
