// Package all registers every built-in sink kind and storage backend.
package all

import (
	_ "statbatch/internal/sink/csv"
	_ "statbatch/internal/sink/db"
	_ "statbatch/internal/sink/ipc"
	_ "statbatch/internal/sink/parquet"
	_ "statbatch/internal/storage/all"
)
