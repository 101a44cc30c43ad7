package assemble

import (
	"fmt"
	"strings"
)

// DefaultChunkRows is the streaming batch size when none is configured.
const DefaultChunkRows = 100000

// Mode selects when batches are cut.
type Mode uint8

const (
	// Streaming flushes every ChunkRows rows and at the last row.
	Streaming Mode = iota
	// FullBuffer flushes once, at the last row.
	FullBuffer
)

func (m Mode) String() string {
	if m == FullBuffer {
		return "full"
	}
	return "streaming"
}

// ParseMode parses "streaming" or "full"; empty means Streaming.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "streaming", "stream":
		return Streaming, nil
	case "full", "full_buffer", "full-buffer", "mem":
		return FullBuffer, nil
	default:
		return Streaming, fmt.Errorf("assemble: unknown mode %q", s)
	}
}

// FlushPolicy decides batch boundaries.
type FlushPolicy struct {
	Mode      Mode
	ChunkRows int
}

// Chunk returns the effective chunk size.
func (p FlushPolicy) Chunk() int {
	if p.ChunkRows <= 0 {
		return DefaultChunkRows
	}
	return p.ChunkRows
}

// ShouldFlush reports whether completing row ends a batch. A negative
// rowCount means the total is unknown, so no row is known to be the last.
func (p FlushPolicy) ShouldFlush(row, rowCount int64) bool {
	last := rowCount >= 0 && row == rowCount-1
	if p.Mode == FullBuffer {
		return last
	}
	return last || (row+1)%int64(p.Chunk()) == 0
}
