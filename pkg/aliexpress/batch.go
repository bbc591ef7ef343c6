package aliexpress

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"aliscan/pkg/logger"
)

// FetchProducts fetches each input in order. Pacing comes from the client's rate
// limiter. A browser launch failure or a cancelled ctx stops the run and marks
// the remaining inputs failed.
func (c *Client) FetchProducts(ctx context.Context, inputs []string) ([]BatchResult, BatchSummary) {
	start := time.Now()
	results := make([]BatchResult, len(inputs))
	summary := BatchSummary{Total: len(inputs)}

	var abort error
	for i, in := range inputs {
		results[i].Input = in

		if abort == nil && ctx.Err() != nil {
			abort = newError(KindNetwork, "batch cancelled", ctx.Err())
		}
		if abort != nil {
			results[i].setErr(abort)
			summary.Failed++
			continue
		}

		resp, err := c.FetchProduct(ctx, in)
		if err != nil {
			results[i].setErr(err)
			summary.Failed++
			if errors.Is(err, ErrBrowserLaunch) {
				abort = err
			}
			logger.FromContext(ctx).Warn("Batch item failed",
				zap.Int("index", i), zap.String("input", in), zap.Error(err))
			continue
		}

		results[i].ProductID = resp.ProductID
		results[i].Response = resp
		summary.Succeeded++
	}

	summary.Elapsed = time.Since(start)
	logger.FromContext(ctx).Info("Batch finished",
		zap.Int("total", summary.Total),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Duration("elapsed", summary.Elapsed))
	return results, summary
}

func (r *BatchResult) setErr(err error) {
	r.Err = err
	r.Error = err.Error()
	r.ErrorKind = KindOf(err)
}
