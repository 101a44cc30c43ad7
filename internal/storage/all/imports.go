// Package all registers every built-in storage backend, for side effects
// only:
//
//	import _ "statbatch/internal/storage/all"
//
// makes the "postgres", "sqlite", "mysql" and "mssql" kinds available to
// storage.New and storage.EnsureTable.
package all

import (
	_ "statbatch/internal/storage/mssql"
	_ "statbatch/internal/storage/mysql"
	_ "statbatch/internal/storage/postgres"
	_ "statbatch/internal/storage/sqlite"
)
