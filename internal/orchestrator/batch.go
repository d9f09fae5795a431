package orchestrator

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/notihub/notihub/internal/apperrors"
	"github.com/notihub/notihub/internal/domain"
)

// SendBatch runs Send for every request in reqs. Parallel mode fans every
// request out concurrently and always collects every outcome; sequential
// mode processes requests in order and, when StopOnError is set, returns
// as soon as one request comes back with an unintentional failure.
func (e *Engine) SendBatch(ctx context.Context, reqs []domain.SendRequest, opts domain.BatchSendOptions) ([]domain.SendResult, error) {
	if len(reqs) > maxBatchSize {
		return nil, apperrors.NewValidationError("requests", "batch exceeds the maximum of 1000 notifications")
	}

	results := make([]domain.SendResult, len(reqs))
	if opts.Parallel {
		var g errgroup.Group
		for i, req := range reqs {
			i, req := i, req
			g.Go(func() error {
				result, err := e.Send(ctx, req)
				if err != nil {
					result = domain.SendResult{Success: false}
				}
				results[i] = result
				return nil
			})
		}
		_ = g.Wait()
		return results, nil
	}

	for i, req := range reqs {
		result, err := e.Send(ctx, req)
		if err != nil {
			results[i] = domain.SendResult{Success: false}
			if opts.StopOnError {
				return results[:i+1], err
			}
			continue
		}
		results[i] = result
		if opts.StopOnError && !result.Success {
			return results[:i+1], nil
		}
	}
	return results, nil
}
