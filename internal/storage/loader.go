package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// CopyFn abstracts a backend's bulk insert. It inserts rows aligned to
// columns and returns the number of rows inserted. It must return promptly
// when ctx is done.
type CopyFn func(ctx context.Context, columns []string, rows [][]any) (int64, error)

// LoadBatches drains rows from in, groups them into batches of batchSize and
// calls copyFn for each non-empty batch. It returns the total reported by
// copyFn and the first error. A nil logger disables progress logging.
//
// Cancellation returns (total, ctx.Err()).
func LoadBatches(
	ctx context.Context,
	logger *slog.Logger,
	columns []string,
	in <-chan []any,
	batchSize int,
	copyFn CopyFn,
) (int64, error) {
	if batchSize <= 0 {
		return 0, fmt.Errorf("storage: batchSize must be > 0")
	}
	if copyFn == nil {
		return 0, fmt.Errorf("storage: copyFn must not be nil")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var (
		total       int64
		batches     int64
		batch       = make([][]any, 0, batchSize)
		start       = time.Now()
		lastFlushTS = start
		lastTotal   int64
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := copyFn(ctx, columns, batch)
		total += n
		batch = batch[:0]
		if err != nil {
			logger.Error("copy failed", "inserted", n, "total_inserted", total, "err", err)
			return err
		}

		batches++
		now := time.Now()
		sinceLast := now.Sub(lastFlushTS)
		rps := float64(0)
		if sinceLast > 0 {
			rps = float64(total-lastTotal) / sinceLast.Seconds()
		}
		logger.Debug("copy batch",
			"batch", batches,
			"rps", int64(rps),
			"inserted", n,
			"total_inserted", total,
			"elapsed", now.Sub(start).Truncate(time.Millisecond),
			"since_last", sinceLast.Truncate(time.Millisecond),
		)
		lastFlushTS = now
		lastTotal = total
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		case row, ok := <-in:
			if !ok {
				if err := flush(); err != nil {
					return total, err
				}
				return total, nil
			}
			batch = append(batch, row)
			if len(batch) >= batchSize {
				if err := flush(); err != nil {
					return total, err
				}
			}
		}
	}
}
