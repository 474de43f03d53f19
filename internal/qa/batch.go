package qa

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/secqa/pkg/models"
)

// defaultParallelism bounds concurrent batch lookups. The registry throttle
// still paces outbound EDGAR calls; this only bounds in-flight work.
const defaultParallelism = 4

// BatchResult is one ticker's outcome from a batch run. A failed ticker does
// not abort the batch; its error rides alongside the others' answers.
type BatchResult struct {
	Ticker string         `json:"ticker"`
	Answer *models.Answer `json:"answer,omitempty"`
	Error  string         `json:"error,omitempty"`

	Err error `json:"-"`
}

// AskEach asks the same question against each ticker's newest matching
// filing, running up to parallelism lookups at once (defaultParallelism when
// <= 0). Results come back in ticker order. Only context cancellation aborts
// the batch.
func (s *Service) AskEach(ctx context.Context, question string, tickers []string, form string, year, parallelism int) ([]BatchResult, error) {
	if parallelism <= 0 {
		parallelism = defaultParallelism
	}

	results := make([]BatchResult, len(tickers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)

	for i, ticker := range tickers {
		i, ticker := i, ticker
		g.Go(func() error {
			answer, err := s.Ask(gctx, AskRequest{
				Question: question,
				Ticker:   ticker,
				FormType: form,
				Year:     year,
			})
			results[i] = BatchResult{Ticker: ticker, Answer: answer, Err: err}
			if err != nil {
				results[i].Error = err.Error()
				if gctx.Err() != nil {
					return gctx.Err()
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
