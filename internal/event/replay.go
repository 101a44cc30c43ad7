package event

import (
	"context"

	"statbatch/internal/errkind"
)

// Replay is an in-memory Source that delivers a fixed stream. Values are
// delivered in slice order; Replay does not reorder or validate them.
type Replay struct {
	Metadata  Metadata
	Variables []Variable
	Values    []Value
}

// ctxCheckEvery bounds how many events pass between context checks.
const ctxCheckEvery = 4096

// Parse implements Source.
func (r *Replay) Parse(ctx context.Context, h Handler) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if h.OnMetadata(r.Metadata) == StatusAbort {
		return errkind.ErrAborted
	}
	for _, v := range r.Variables {
		if h.OnVariable(v) == StatusAbort {
			return errkind.ErrAborted
		}
	}
	for i, v := range r.Values {
		if i%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if h.OnValue(v) == StatusAbort {
			return errkind.ErrAborted
		}
	}
	return nil
}
