package marketdata

import (
	"context"

	"golang.org/x/sync/errgroup"

	"dexbit/internal/logger"
)

// fanOut runs fn for every symbol with bounded concurrency and returns the
// results positionally. A failed lookup leaves the zero value in its slot
// and is logged; bulk callers skip holes rather than failing wholesale.
func fanOut[T any](ctx context.Context, symbols []string, limit int, fn func(context.Context, string) (T, error)) []T {
	results := make([]T, len(symbols))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, symbol := range symbols {
		g.Go(func() error {
			value, err := fn(ctx, symbol)
			if err != nil {
				logger.Get().Warnw("market data lookup failed", "symbol", symbol, "error", err)
				return nil
			}
			results[i] = value
			return nil
		})
	}

	// Workers never return errors; Wait only synchronizes completion.
	_ = g.Wait()
	return results
}
