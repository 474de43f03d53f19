package qa

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/seenimoa/secqa/internal/edgar"
	"github.com/seenimoa/secqa/internal/llm"
)

const filingHTML = `<html><head><script>skip()</script></head>
<body><p>Net sales for the quarter were $85.8 billion.</p></body></html>`

// newEdgarStack serves the full registry surface a question needs: directory,
// submissions, and the archived document.
func newEdgarStack(t *testing.T) *edgar.Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/files/company_tickers.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"0": {"cik_str": 320193, "ticker": "AAPL", "title": "Apple Inc."}}`))
	})
	mux.HandleFunc("/submissions/CIK0000320193.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"cik": "320193",
			"name": "Apple Inc.",
			"filings": {"recent": {
				"accessionNumber": ["0000320193-24-000069", "0000320193-24-000052"],
				"filingDate": ["2024-07-28", "2024-04-28"],
				"form": ["10-Q", "10-Q"],
				"primaryDocument": ["aapl-20240629.htm", "aapl-20240330.htm"],
				"primaryDocDescription": ["10-Q", "10-Q"]
			}}
		}`))
	})
	mux.HandleFunc("/Archives/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(filingHTML))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client, err := edgar.NewClient(edgar.Config{
		UserAgent:   "secqa tests test@example.com",
		CachePath:   filepath.Join(t.TempDir(), "company_tickers.json"),
		BaseURL:     srv.URL,
		DataBaseURL: srv.URL,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

// fakeAnswerer records the prompt it receives and returns a canned response.
type fakeAnswerer struct {
	messages []llm.Message
	err      error
}

func (f *fakeAnswerer) Chat(ctx context.Context, messages []llm.Message, opts *llm.ChatOptions) (*llm.Response, error) {
	f.messages = messages
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{
		Content: "Net sales were $85.8 billion.",
		Model:   "claude-sonnet-4-20250514",
	}, nil
}

func TestAskBuildsPromptFromFiling(t *testing.T) {
	fake := &fakeAnswerer{}
	svc := NewService(newEdgarStack(t), fake, Config{})

	answer, err := svc.Ask(context.Background(), AskRequest{
		Question: "What were net sales?",
		Ticker:   "aapl",
	})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}

	if answer.Response != "Net sales were $85.8 billion." {
		t.Errorf("Response = %q", answer.Response)
	}
	if answer.Company.CIK != "0000320193" {
		t.Errorf("Company.CIK = %q", answer.Company.CIK)
	}
	if answer.Filing.FormType != "10-Q" {
		t.Errorf("Filing.FormType = %q, want default 10-Q", answer.Filing.FormType)
	}
	if got := answer.Filing.FilingDate.Format("2006-01-02"); got != "2024-07-28" {
		t.Errorf("Filing.FilingDate = %s, want newest", got)
	}
	if answer.Truncated {
		t.Error("Truncated = true for a tiny filing")
	}

	if len(fake.messages) != 2 {
		t.Fatalf("got %d messages, want system + user", len(fake.messages))
	}
	if fake.messages[0].Role != llm.RoleSystem {
		t.Errorf("first message role = %q, want system", fake.messages[0].Role)
	}
	prompt := fake.messages[1].Content
	if !strings.HasPrefix(prompt, "Using the information below.\n\nWhat were net sales?\n\n") {
		t.Errorf("prompt framing wrong: %q", prompt)
	}
	if !strings.Contains(prompt, "$85.8 billion") {
		t.Errorf("prompt missing filing text: %q", prompt)
	}
	if strings.Contains(prompt, "skip()") {
		t.Errorf("prompt contains script content: %q", prompt)
	}
}

func TestAskTruncatesContext(t *testing.T) {
	fake := &fakeAnswerer{}
	svc := NewService(newEdgarStack(t), fake, Config{MaxContextChars: 20})

	answer, err := svc.Ask(context.Background(), AskRequest{
		Question: "What were net sales?",
		Ticker:   "AAPL",
	})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if !answer.Truncated {
		t.Error("Truncated = false with a 20-char budget")
	}
	prompt := fake.messages[1].Content
	if !strings.HasSuffix(prompt, "[DOCUMENT TRUNCATED]") {
		t.Errorf("prompt missing truncation marker: %q", prompt)
	}
}

func TestFitContextKeepsRuneBoundary(t *testing.T) {
	svc := NewService(nil, nil, Config{MaxContextChars: 4})

	// The euro sign spans bytes 2 through 4; a cut at byte 4 lands inside it.
	text := "ab€def"
	got, truncated := svc.fitContext(text)
	if !truncated {
		t.Fatal("truncated = false")
	}
	if !utf8.ValidString(got) {
		t.Errorf("truncated text is not valid UTF-8: %q", got)
	}
	if !strings.HasPrefix(got, "ab") || !strings.HasSuffix(got, truncationMarker) {
		t.Errorf("truncated text = %q", got)
	}
	if strings.Contains(strings.TrimSuffix(got, truncationMarker), "€") {
		t.Errorf("partial rune survived the cut: %q", got)
	}
}

func TestAskValidation(t *testing.T) {
	svc := NewService(newEdgarStack(t), &fakeAnswerer{}, Config{})
	ctx := context.Background()

	if _, err := svc.Ask(ctx, AskRequest{Ticker: "AAPL"}); err == nil {
		t.Error("expected error for missing question")
	}
	if _, err := svc.Ask(ctx, AskRequest{Question: "q"}); err == nil {
		t.Error("expected error for missing ticker")
	}
}

func TestAskUnknownTicker(t *testing.T) {
	svc := NewService(newEdgarStack(t), &fakeAnswerer{}, Config{})

	_, err := svc.Ask(context.Background(), AskRequest{Question: "q", Ticker: "FAKETKR"})
	if !errors.Is(err, edgar.ErrTickerNotFound) {
		t.Fatalf("Ask = %v, want ErrTickerNotFound", err)
	}
}

func TestAskInferenceError(t *testing.T) {
	svc := NewService(newEdgarStack(t), &fakeAnswerer{err: llm.ErrRateLimit}, Config{})

	_, err := svc.Ask(context.Background(), AskRequest{Question: "q", Ticker: "AAPL"})
	if !errors.Is(err, llm.ErrRateLimit) {
		t.Fatalf("Ask = %v, want ErrRateLimit", err)
	}
}

func TestFilingsListAndFilter(t *testing.T) {
	svc := NewService(newEdgarStack(t), &fakeAnswerer{}, Config{})
	ctx := context.Background()

	all, err := svc.Filings(ctx, "AAPL", "", 0)
	if err != nil {
		t.Fatalf("Filings: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("got %d filings, want 2", len(all))
	}

	limited, err := svc.Filings(ctx, "AAPL", "10-Q", 1)
	if err != nil {
		t.Fatalf("Filings(10-Q, 1): %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("got %d filings, want 1", len(limited))
	}
}

func TestAskEach(t *testing.T) {
	svc := NewService(newEdgarStack(t), &fakeAnswerer{}, Config{})

	results, err := svc.AskEach(context.Background(), "What were net sales?",
		[]string{"AAPL", "FAKETKR", "aapl"}, "10-Q", 0, 2)
	if err != nil {
		t.Fatalf("AskEach: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}

	// Results come back in ticker order; a bad ticker fails alone.
	if results[0].Ticker != "AAPL" || results[0].Err != nil || results[0].Answer == nil {
		t.Errorf("results[0] = %+v, want answer for AAPL", results[0])
	}
	if !errors.Is(results[1].Err, edgar.ErrTickerNotFound) {
		t.Errorf("results[1].Err = %v, want ErrTickerNotFound", results[1].Err)
	}
	if results[1].Error == "" {
		t.Error("results[1].Error string empty")
	}
	if results[2].Err != nil || results[2].Answer == nil {
		t.Errorf("results[2] = %+v, want answer for aapl", results[2])
	}
}
