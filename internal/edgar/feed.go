package edgar

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/seenimoa/secqa/pkg/models"
)

// Watcher reads the per-company Atom feed that EDGAR publishes alongside the
// JSON API. The feed updates ahead of the bulk endpoints, which makes it the
// cheap way to notice a new filing without re-pulling the submissions file.
type Watcher struct {
	tr      *transport
	baseURL string
	parser  *gofeed.Parser
}

func newWatcher(tr *transport, baseURL string) *Watcher {
	return &Watcher{
		tr:      tr,
		baseURL: baseURL,
		parser:  gofeed.NewParser(),
	}
}

// Recent returns the newest entries from the company's filing feed,
// optionally restricted to one form type, at most limit entries.
func (w *Watcher) Recent(ctx context.Context, cik, form string, limit int) ([]models.FeedEntry, error) {
	q := url.Values{}
	q.Set("action", "getcompany")
	q.Set("CIK", padCIK(cik))
	if form != "" {
		q.Set("type", form)
	}
	q.Set("owner", "include")
	q.Set("count", "40")
	q.Set("output", "atom")
	feedURL := w.baseURL + "/cgi-bin/browse-edgar?" + q.Encode()

	body, _, err := w.tr.get(ctx, feedURL, "application/atom+xml")
	if err != nil {
		return nil, fmt.Errorf("fetch filing feed for CIK %s: %w", cik, err)
	}
	defer body.Close()

	feed, err := w.parser.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse filing feed for CIK %s: %w", cik, err)
	}

	var entries []models.FeedEntry
	for _, item := range feed.Items {
		entry := models.FeedEntry{
			Title:    item.Title,
			Link:     item.Link,
			FormType: feedFormType(item),
		}
		if item.UpdatedParsed != nil {
			entry.Updated = *item.UpdatedParsed
		} else if item.PublishedParsed != nil {
			entry.Updated = *item.PublishedParsed
		}
		if form != "" && !strings.EqualFold(entry.FormType, form) {
			continue
		}
		entries = append(entries, entry)
		if limit > 0 && len(entries) == limit {
			break
		}
	}
	return entries, nil
}

// feedFormType pulls the form type from the "10-Q - Quarterly report" title
// convention. The entry's category element carries the form type as its term
// attribute, but gofeed surfaces the category label ("form type") instead, so
// the title is the reliable source.
func feedFormType(item *gofeed.Item) string {
	if i := strings.Index(item.Title, " - "); i > 0 {
		return strings.TrimSpace(item.Title[:i])
	}
	return ""
}

// Poll invokes fn for each entry newer than since, oldest first, and returns
// the newest timestamp seen. Callers drive the loop on their own schedule; the
// watcher itself holds no timer state.
func (w *Watcher) Poll(ctx context.Context, cik, form string, since time.Time, fn func(models.FeedEntry)) (time.Time, error) {
	entries, err := w.Recent(ctx, cik, form, 0)
	if err != nil {
		return since, err
	}

	newest := since
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if !e.Updated.After(since) {
			continue
		}
		fn(e)
		if e.Updated.After(newest) {
			newest = e.Updated
		}
	}
	return newest, nil
}
