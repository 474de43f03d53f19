// Package models defines the core data structures used throughout secqa.
package models

import "time"

// Company is one entry from the SEC ticker directory.
// CIK is the canonical registry identifier, zero-padded to 10 digits.
type Company struct {
	CIK    string `json:"cik"`
	Ticker string `json:"ticker"`
	Name   string `json:"name"`
}

// Filing is one row of a company's EDGAR submissions feed.
type Filing struct {
	CIK             string    `json:"cik"`
	CompanyName     string    `json:"company_name,omitempty"`
	FormType        string    `json:"form_type"` // "10-K", "10-Q", "8-K", etc.
	FilingDate      time.Time `json:"filing_date"`
	AccessionNumber string    `json:"accession_number"` // dash-delimited, e.g. "0000320193-24-000081"
	PrimaryDocument string    `json:"primary_document"`
	Description     string    `json:"description,omitempty"`
}

// FilingDocument is the downloaded, text-extracted body of a filing.
type FilingDocument struct {
	Filing Filing `json:"filing"`
	Text   string `json:"text"`
	Size   int    `json:"size"` // extracted text size in bytes
	URL    string `json:"url"`
}

// Usage tracks token consumption for an LLM request.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Answer is the result of asking a question against a filing.
type Answer struct {
	Question  string    `json:"question"`
	Response  string    `json:"response"`
	Company   Company   `json:"company"`
	Filing    Filing    `json:"filing"`
	Usage     Usage     `json:"usage"`
	Model     string    `json:"model,omitempty"`
	Truncated bool      `json:"truncated"` // filing text was cut to fit the context budget
	AskedAt   time.Time `json:"asked_at"`
}

// FeedEntry is one item from the EDGAR per-company Atom feed of new filings.
type FeedEntry struct {
	Title    string    `json:"title"`
	FormType string    `json:"form_type"`
	Link     string    `json:"link"`
	Updated  time.Time `json:"updated"`
}
