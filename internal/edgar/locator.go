package edgar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/seenimoa/secqa/internal/infra"
	"github.com/seenimoa/secqa/pkg/models"
)

// submissionsTTL bounds how long a company's parsed feed is reused before
// hitting the registry again.
const submissionsTTL = 10 * time.Minute

// Locator retrieves and filters a company's filing history from the EDGAR
// submissions feed. Only the feed's recent block is consulted; older history
// sub-files are a documented limitation.
type Locator struct {
	tr      *transport
	dataURL string
	cache   *infra.Cache
}

func newLocator(tr *transport, dataURL string) *Locator {
	return &Locator{
		tr:      tr,
		dataURL: dataURL,
		cache:   infra.NewCache(submissionsTTL),
	}
}

// ListSubmissions returns the company's recent filings in feed order
// (most-recent-first, per registry convention).
func (l *Locator) ListSubmissions(ctx context.Context, cik string) ([]models.Filing, error) {
	cacheKey := "submissions:" + padCIK(cik)
	if cached, ok := l.cache.Get(cacheKey); ok {
		return cached.([]models.Filing), nil
	}

	url := fmt.Sprintf("%s/submissions/CIK%s.json", l.dataURL, padCIK(cik))
	body, _, err := l.tr.get(ctx, url, "application/json")
	if err != nil {
		return nil, fmt.Errorf("fetch submissions for CIK %s: %w", cik, err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read submissions for CIK %s: %w", cik, err)
	}

	var resp submissionsResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse submissions JSON for CIK %s: %w", cik, err)
	}

	filings, err := parseFilingSet(resp)
	if err != nil {
		return nil, fmt.Errorf("CIK %s: %w", cik, err)
	}

	l.cache.Set(cacheKey, filings)
	return filings, nil
}

// parseFilingSet converts the feed's parallel arrays into Filing records,
// rejecting a malformed feed rather than guessing at alignment.
func parseFilingSet(resp submissionsResponse) ([]models.Filing, error) {
	recent := resp.Filings.Recent
	n := len(recent.AccessionNumber)
	if len(recent.FilingDate) != n || len(recent.Form) != n || len(recent.PrimaryDocument) != n {
		return nil, fmt.Errorf("submissions feed parallel arrays disagree: %d accession numbers, %d dates, %d forms, %d documents",
			n, len(recent.FilingDate), len(recent.Form), len(recent.PrimaryDocument))
	}

	filings := make([]models.Filing, 0, n)
	for i := 0; i < n; i++ {
		date, err := parseFilingDate(recent.FilingDate[i])
		if err != nil {
			return nil, fmt.Errorf("filing %s: %w", recent.AccessionNumber[i], err)
		}
		desc := ""
		if i < len(recent.Description) {
			desc = recent.Description[i]
		}
		filings = append(filings, models.Filing{
			CIK:             padCIK(resp.CIK),
			CompanyName:     resp.Name,
			FormType:        recent.Form[i],
			FilingDate:      date,
			AccessionNumber: recent.AccessionNumber[i],
			PrimaryDocument: recent.PrimaryDocument[i],
			Description:     desc,
		})
	}
	return filings, nil
}

// Find returns at most limit filings of the given form type, newest first.
// Zero matches is ErrNoFilings; the CIK itself may be perfectly valid.
func (l *Locator) Find(ctx context.Context, cik, form string, limit int) ([]models.Filing, error) {
	all, err := l.ListSubmissions(ctx, cik)
	if err != nil {
		return nil, err
	}

	var matches []models.Filing
	for _, f := range all {
		if !strings.EqualFold(f.FormType, form) {
			continue
		}
		matches = append(matches, f)
		if limit > 0 && len(matches) == limit {
			break
		}
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: form %s for CIK %s", ErrNoFilings, form, padCIK(cik))
	}
	return matches, nil
}

// SearchByDateRange returns filings of the given form type whose filing date
// falls inclusively within [start, end]. Only the calendar date matters; any
// time-of-day component on the bounds is ignored.
func (l *Locator) SearchByDateRange(ctx context.Context, cik, form string, start, end time.Time) ([]models.Filing, error) {
	all, err := l.ListSubmissions(ctx, cik)
	if err != nil {
		return nil, err
	}

	startDay := truncateToDay(start)
	endDay := truncateToDay(end)

	var matches []models.Filing
	for _, f := range all {
		if form != "" && !strings.EqualFold(f.FormType, form) {
			continue
		}
		day := truncateToDay(f.FilingDate)
		if day.Before(startDay) || day.After(endDay) {
			continue
		}
		matches = append(matches, f)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: form %s for CIK %s between %s and %s",
			ErrNoFilings, form, padCIK(cik), startDay.Format("2006-01-02"), endDay.Format("2006-01-02"))
	}
	return matches, nil
}

// Latest returns the single newest filing of the given form type.
func (l *Locator) Latest(ctx context.Context, cik, form string) (models.Filing, error) {
	matches, err := l.Find(ctx, cik, form, 1)
	if err != nil {
		return models.Filing{}, err
	}
	return matches[0], nil
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
