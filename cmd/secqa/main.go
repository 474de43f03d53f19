// secqa is a CLI for SEC filing retrieval and question answering.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/seenimoa/secqa/api"
	"github.com/seenimoa/secqa/internal/config"
	"github.com/seenimoa/secqa/internal/edgar"
	"github.com/seenimoa/secqa/internal/llm"
	"github.com/seenimoa/secqa/internal/qa"
	"github.com/seenimoa/secqa/pkg/models"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config
var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "secqa",
	Short: "SEC filing retrieval and question answering",
	Long: `secqa retrieves 10-K/10-Q and other filings from SEC EDGAR,
resolves ticker symbols to CIK identifiers, and answers questions
about a filing using a hosted LLM with the filing text as context.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(filingsCmd)
	rootCmd.AddCommand(textCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
}

// newEdgarClient builds the registry client from loaded config.
func newEdgarClient() (*edgar.Client, error) {
	return edgar.NewClient(edgar.Config{
		UserAgent:    cfg.Edgar.UserAgent,
		CachePath:    cfg.Edgar.CachePath,
		UseCache:     cfg.Edgar.UseCache,
		RequestDelay: cfg.Edgar.RequestDelay(),
		Timeout:      cfg.Edgar.Timeout(),
	})
}

// newService builds the full QA service (registry client + LLM router).
func newService() (*qa.Service, error) {
	client, err := newEdgarClient()
	if err != nil {
		return nil, err
	}
	router, err := llm.NewRouterFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("LLM setup failed: %w", err)
	}
	return qa.NewService(client, router, qa.Config{
		MaxContextChars: cfg.Edgar.MaxContextChars,
		ChatOptions: &llm.ChatOptions{
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
		},
	}), nil
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("secqa %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Resolve Command ---

var resolveCmd = &cobra.Command{
	Use:   "resolve [ticker]",
	Short: "Resolve a ticker symbol to its CIK identifier",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newEdgarClient()
		if err != nil {
			return err
		}

		company, err := client.Resolve(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("CIK:     %s\n", company.CIK)
		fmt.Printf("Ticker:  %s\n", company.Ticker)
		fmt.Printf("Name:    %s\n", company.Name)
		return nil
	},
}

// --- Filings Command ---

var filingsCmd = &cobra.Command{
	Use:   "filings [ticker]",
	Short: "List recent filings for a company",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		form, _ := cmd.Flags().GetString("form")
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newEdgarClient()
		if err != nil {
			return err
		}

		company, err := client.Resolve(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		var filings []models.Filing
		if form != "" {
			filings, err = client.Locator.Find(cmd.Context(), company.CIK, form, limit)
		} else {
			filings, err = client.Locator.ListSubmissions(cmd.Context(), company.CIK)
			if err == nil && limit > 0 && len(filings) > limit {
				filings = filings[:limit]
			}
		}
		if err != nil {
			return err
		}

		fmt.Printf("%s (CIK %s)\n\n", company.Name, company.CIK)
		fmt.Printf("%-12s %-10s %-24s %s\n", "DATE", "FORM", "ACCESSION", "DOCUMENT")
		for _, f := range filings {
			fmt.Printf("%-12s %-10s %-24s %s\n",
				f.FilingDate.Format("2006-01-02"), f.FormType, f.AccessionNumber, f.PrimaryDocument)
		}
		return nil
	},
}

func init() {
	filingsCmd.Flags().String("form", "", "filter by form type (e.g. 10-K, 10-Q)")
	filingsCmd.Flags().Int("limit", 20, "maximum filings to list")
}

// --- Text Command ---

var textCmd = &cobra.Command{
	Use:   "text [ticker]",
	Short: "Download and print a filing's extracted text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		form, _ := cmd.Flags().GetString("form")
		year, _ := cmd.Flags().GetInt("year")
		out, _ := cmd.Flags().GetString("out")

		client, err := newEdgarClient()
		if err != nil {
			return err
		}

		doc, err := client.FilingText(cmd.Context(), args[0], form, year)
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stderr, "%s %s filed %s, %d bytes of text\n",
			doc.Filing.CompanyName, doc.Filing.FormType,
			doc.Filing.FilingDate.Format("2006-01-02"), doc.Size)

		if out != "" {
			if err := os.WriteFile(out, []byte(doc.Text), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Fprintf(os.Stderr, "wrote %s\n", out)
			return nil
		}
		fmt.Println(doc.Text)
		return nil
	},
}

func init() {
	textCmd.Flags().String("form", "10-Q", "form type to fetch")
	textCmd.Flags().Int("year", 0, "restrict to filings from this calendar year")
	textCmd.Flags().String("out", "", "write text to file instead of stdout")
}

// --- Ask Command ---

var askCmd = &cobra.Command{
	Use:   "ask [ticker]...",
	Short: "Ask a question about a company's latest filing",
	Long: `Ask a question about a company's latest filing. With multiple
tickers the same question is asked against each company's filing.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question, _ := cmd.Flags().GetString("question")
		form, _ := cmd.Flags().GetString("form")
		year, _ := cmd.Flags().GetInt("year")
		if question == "" {
			return fmt.Errorf("--question is required")
		}

		svc, err := newService()
		if err != nil {
			return err
		}

		if len(args) == 1 {
			answer, err := svc.Ask(cmd.Context(), qa.AskRequest{
				Question: question,
				Ticker:   args[0],
				FormType: form,
				Year:     year,
			})
			if err != nil {
				return err
			}
			printAnswer(answer)
			return nil
		}

		results, err := svc.AskEach(cmd.Context(), question, args, form, year, 0)
		if err != nil {
			return err
		}
		for _, res := range results {
			fmt.Printf("=== %s ===\n", strings.ToUpper(res.Ticker))
			if res.Err != nil {
				fmt.Printf("error: %v\n\n", res.Err)
				continue
			}
			printAnswer(res.Answer)
		}
		return nil
	},
}

func printAnswer(a *models.Answer) {
	fmt.Printf("%s %s filed %s\n", a.Company.Name, a.Filing.FormType,
		a.Filing.FilingDate.Format("2006-01-02"))
	if a.Truncated {
		fmt.Println("(filing text truncated to fit context budget)")
	}
	fmt.Printf("\n%s\n\n", a.Response)
	fmt.Printf("model: %s, tokens: %d in / %d out\n\n",
		a.Model, a.Usage.PromptTokens, a.Usage.CompletionTokens)
}

func init() {
	askCmd.Flags().StringP("question", "q", "", "question to ask (required)")
	askCmd.Flags().String("form", "10-Q", "form type to use as context")
	askCmd.Flags().Int("year", 0, "restrict to filings from this calendar year")
}

// --- Watch Command ---

var watchCmd = &cobra.Command{
	Use:   "watch [ticker]",
	Short: "Watch a company's filing feed for new filings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		form, _ := cmd.Flags().GetString("form")
		interval, _ := cmd.Flags().GetDuration("interval")

		client, err := newEdgarClient()
		if err != nil {
			return err
		}

		company, err := client.Resolve(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Watching %s filings for %s (poll every %s)\n", form, company.Name, interval)

		since := time.Now().Add(-24 * time.Hour)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			since, err = client.Watcher.Poll(cmd.Context(), company.CIK, form, since, func(e models.FeedEntry) {
				fmt.Printf("[%s] %s\n  %s\n", e.Updated.Format(time.RFC3339), e.Title, e.Link)
			})
			if err != nil {
				fmt.Fprintf(os.Stderr, "poll failed: %v\n", err)
			}

			select {
			case <-cmd.Context().Done():
				return nil
			case <-ticker.C:
			}
		}
	},
}

func init() {
	watchCmd.Flags().String("form", "", "filter by form type")
	watchCmd.Flags().Duration("interval", 5*time.Minute, "poll interval")
}

// --- Serve Command ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}

		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		fmt.Printf("secqa API listening on %s\n", addr)
		return api.NewServer(cfg, svc).ListenAndServe(addr)
	},
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show credential and configuration status",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Credentials:")
		for _, k := range config.CheckAPIKeys(cfg) {
			mark := "✗"
			if k.IsSet {
				mark = "✓"
			}
			fmt.Printf("  %s %-20s source=%-6s %s\n", mark, k.Name, k.Source, k.Masked)
		}
		fmt.Printf("\nEDGAR cache: %s (use_cache=%v)\n", cfg.Edgar.CachePath, cfg.Edgar.UseCache)
		fmt.Printf("LLM primary: %s (model %s)\n", cfg.LLM.Primary, cfg.LLM.Model)
	},
}
