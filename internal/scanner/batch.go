package scanner

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ironsheep/docscan-mcp/internal/raster"
)

// Item is one image of a batch. When Load is set it is called as the
// item's turn comes and Buffer is ignored; a Load error becomes the
// item's Outcome error.
type Item struct {
	Name   string
	Buffer *raster.Buffer
	Load   func() (*raster.Buffer, error)
}

func (it Item) buffer() (*raster.Buffer, error) {
	if it.Load != nil {
		return it.Load()
	}
	return it.Buffer, nil
}

// Progress is sent after each image of a batch completes.
type Progress struct {
	BatchID string        `json:"batch_id"`
	Index   int           `json:"index"`
	Total   int           `json:"total"`
	Name    string        `json:"name"`
	Elapsed time.Duration `json:"elapsed"`
	Err     error         `json:"-"`
}

// Outcome is the result of one image: exactly one of Result and Err is set.
type Outcome struct {
	Name   string
	Result *Result
	Err    error
}

// ScanBatch scans items one after another. It checks ctx before and after
// each image; once ctx is done it stops and returns the outcomes completed
// before cancellation together with ctx's error. An image still running
// at that point is dropped. After each image a Progress value is sent on progress,
// if non-nil. The send blocks until received or ctx is done, so the
// receiver sets the pace.
//
// A failing image does not stop the batch; its Outcome carries the error.
func (s *Scanner) ScanBatch(ctx context.Context, items []Item, opts Options, progress chan<- Progress) ([]Outcome, error) {
	batchID := uuid.NewString()
	log := s.log.With().Str("batch_id", batchID).Int("total", len(items)).Logger()
	log.Info().Msg("Batch started")

	outcomes := make([]Outcome, 0, len(items))
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			log.Info().Int("completed", i).Msg("Batch cancelled")
			return outcomes, err
		}

		start := time.Now()
		var res *Result
		src, err := item.buffer()
		if err == nil {
			res, err = s.Scan(ctx, src, opts)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			// The image finished after cancellation; its result is dropped.
			log.Info().Int("completed", i).Msg("Batch cancelled")
			return outcomes, ctxErr
		}
		outcomes = append(outcomes, Outcome{Name: item.Name, Result: res, Err: err})

		if err != nil {
			log.Warn().Err(err).Str("name", item.Name).Msg("Image failed")
		}
		if progress != nil {
			p := Progress{
				BatchID: batchID,
				Index:   i,
				Total:   len(items),
				Name:    item.Name,
				Elapsed: time.Since(start),
				Err:     err,
			}
			select {
			case progress <- p:
			case <-ctx.Done():
				log.Info().Int("completed", i+1).Msg("Batch cancelled")
				return outcomes, ctx.Err()
			}
		}
	}

	log.Info().Msg("Batch finished")
	return outcomes, nil
}

// ScanAsync runs Scan on its own goroutine. The returned channel receives
// exactly one Outcome and is then closed, unless ctx is done first: the
// result is then dropped and the channel closed without a value.
func (s *Scanner) ScanAsync(ctx context.Context, src *raster.Buffer, opts Options) <-chan Outcome {
	out := make(chan Outcome, 1)
	go func() {
		defer close(out)
		res, err := s.Scan(ctx, src, opts)
		if ctx.Err() != nil {
			return
		}
		out <- Outcome{Result: res, Err: err}
	}()
	return out
}
