package edgar

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/seenimoa/secqa/pkg/models"
)

// Documents downloads filing documents from the EDGAR archives and extracts
// their textual content. Documents are never cached: filings run to megabytes
// and long-term storage is the caller's concern.
type Documents struct {
	tr      *transport
	baseURL string
}

func newDocuments(tr *transport, baseURL string) *Documents {
	return &Documents{tr: tr, baseURL: baseURL}
}

// URL builds the archive URL for a filing's primary document. The CIK loses
// its leading zeros and the accession number its dashes in the path; the
// display values keep both.
func (d *Documents) URL(filing models.Filing) string {
	return fmt.Sprintf("%s/Archives/edgar/data/%s/%s/%s",
		d.baseURL,
		trimCIK(filing.CIK),
		strings.ReplaceAll(filing.AccessionNumber, "-", ""),
		filing.PrimaryDocument)
}

// Download retrieves the filing's primary document. HTML bodies are reduced to
// plain text with script and style content removed and whitespace collapsed;
// anything else passes through as-is. An extraction that yields nothing is
// ErrEmptyDocument so the caller can try an alternate filing instead of
// silently passing blank context downstream.
func (d *Documents) Download(ctx context.Context, filing models.Filing) (*models.FilingDocument, error) {
	url := d.URL(filing)
	body, contentType, err := d.tr.get(ctx, url, "text/html, text/plain, */*")
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var text string
	if isHTML(contentType, filing.PrimaryDocument) {
		text, err = extractText(body)
		if err != nil {
			return nil, err
		}
	} else {
		raw, rerr := io.ReadAll(body)
		if rerr != nil {
			return nil, fmt.Errorf("read document body: %w", rerr)
		}
		text = strings.TrimSpace(string(raw))
	}

	if text == "" {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDocument, url)
	}

	return &models.FilingDocument{
		Filing: filing,
		Text:   text,
		Size:   len(text),
		URL:    url,
	}, nil
}

// isHTML reports whether the response should be treated as markup, judged by
// content type first and document extension as a fallback (EDGAR sometimes
// serves .htm files as application/octet-stream).
func isHTML(contentType, document string) bool {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "html") || strings.Contains(ct, "xml") {
		return true
	}
	doc := strings.ToLower(document)
	return strings.HasSuffix(doc, ".htm") || strings.HasSuffix(doc, ".html") || strings.HasSuffix(doc, ".xhtml")
}

// extractText strips markup from an HTML filing, dropping script and style
// subtrees and collapsing runs of whitespace to single spaces.
func extractText(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("parse filing HTML: %w", err)
	}
	doc.Find("script, style, noscript").Remove()
	return strings.Join(strings.Fields(doc.Text()), " "), nil
}
