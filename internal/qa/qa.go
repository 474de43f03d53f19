// Package qa ties the EDGAR registry client to an LLM inference collaborator:
// it fetches filing text and answers questions against it. Token-budget
// trimming of the filing text lives here, not in the registry client: it is
// caller policy, not registry behavior.
package qa

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/seenimoa/secqa/internal/edgar"
	"github.com/seenimoa/secqa/internal/llm"
	"github.com/seenimoa/secqa/pkg/models"
)

// truncationMarker is appended when a filing is cut to fit the context budget.
const truncationMarker = "\n\n[DOCUMENT TRUNCATED]"

const systemPrompt = "You are a financial analyst assistant. Answer questions " +
	"about SEC filings using only the provided filing text. When the filing " +
	"does not contain the answer, say so instead of guessing."

// Answerer is what the service needs from the inference collaborator.
// *llm.Router and every llm backend satisfy it.
type Answerer interface {
	Chat(ctx context.Context, messages []llm.Message, opts *llm.ChatOptions) (*llm.Response, error)
}

// Service answers questions about SEC filings.
type Service struct {
	edgar           *edgar.Client
	answerer        Answerer
	chatOpts        *llm.ChatOptions
	maxContextChars int
}

// Config holds service settings.
type Config struct {
	// MaxContextChars bounds how much filing text is sent as context.
	// Zero means no truncation.
	MaxContextChars int

	// ChatOptions are passed through to every inference call.
	ChatOptions *llm.ChatOptions
}

// NewService creates a question-answering service over the given registry
// client and inference collaborator.
func NewService(client *edgar.Client, answerer Answerer, cfg Config) *Service {
	return &Service{
		edgar:           client,
		answerer:        answerer,
		chatOpts:        cfg.ChatOptions,
		maxContextChars: cfg.MaxContextChars,
	}
}

// FilingText fetches the text of the newest matching filing. It is a
// pass-through to the registry client so API and CLI callers need only the
// service.
func (s *Service) FilingText(ctx context.Context, ticker, form string, year int) (*models.FilingDocument, error) {
	return s.edgar.FilingText(ctx, ticker, form, year)
}

// Resolve maps a ticker to its company record.
func (s *Service) Resolve(ctx context.Context, ticker string) (models.Company, error) {
	return s.edgar.Resolve(ctx, ticker)
}

// Filings lists recent filings of the given form for a ticker.
func (s *Service) Filings(ctx context.Context, ticker, form string, limit int) ([]models.Filing, error) {
	company, err := s.edgar.Resolve(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("resolve ticker %q: %w", ticker, err)
	}
	if form == "" {
		filings, err := s.edgar.Locator.ListSubmissions(ctx, company.CIK)
		if err != nil {
			return nil, err
		}
		if limit > 0 && len(filings) > limit {
			filings = filings[:limit]
		}
		return filings, nil
	}
	return s.edgar.Locator.Find(ctx, company.CIK, form, limit)
}

// AskRequest describes one question against one company's filing.
type AskRequest struct {
	Question string `json:"question"`
	Ticker   string `json:"ticker"`
	FormType string `json:"form_type"` // defaults to 10-Q
	Year     int    `json:"year,omitempty"`
}

// Ask fetches the filing, builds the context prompt, and asks the LLM.
func (s *Service) Ask(ctx context.Context, req AskRequest) (*models.Answer, error) {
	if req.Question == "" {
		return nil, fmt.Errorf("question is required")
	}
	if req.Ticker == "" {
		return nil, fmt.Errorf("ticker is required")
	}
	form := req.FormType
	if form == "" {
		form = "10-Q"
	}

	company, err := s.edgar.Resolve(ctx, req.Ticker)
	if err != nil {
		return nil, fmt.Errorf("resolve ticker %q: %w", req.Ticker, err)
	}

	doc, err := s.edgar.CompanyFilingText(ctx, company, form, req.Year)
	if err != nil {
		return nil, err
	}

	contextText, truncated := s.fitContext(doc.Text)

	resp, err := s.answerer.Chat(ctx, []llm.Message{
		llm.SystemMessage(systemPrompt),
		llm.UserMessage(buildPrompt(req.Question, contextText)),
	}, s.chatOpts)
	if err != nil {
		return nil, fmt.Errorf("inference for %s %s: %w", company.Ticker, form, err)
	}

	return &models.Answer{
		Question:  req.Question,
		Response:  resp.Content,
		Company:   company,
		Filing:    doc.Filing,
		Usage:     resp.Usage,
		Model:     resp.Model,
		Truncated: truncated,
		AskedAt:   time.Now(),
	}, nil
}

// fitContext cuts the filing text to the configured character budget, backing
// off to a rune boundary so the cut never splits a multi-byte character.
func (s *Service) fitContext(text string) (string, bool) {
	if s.maxContextChars <= 0 || len(text) <= s.maxContextChars {
		return text, false
	}
	cut := s.maxContextChars
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + truncationMarker, true
}

// buildPrompt frames the question ahead of the filing text.
func buildPrompt(question, contextText string) string {
	return fmt.Sprintf("Using the information below.\n\n%s\n\n%s", question, contextText)
}
