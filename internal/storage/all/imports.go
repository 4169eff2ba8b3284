// Package all wires every built-in storage backend into the storage
// factory. Import it for side effects from the command packages:
//
//	import _ "insurance-dq/internal/storage/all"
//
// after which storage.New accepts the kinds "parquet", "sqlite",
// "postgres", "mssql" and "mysql".
package all

import (
	_ "insurance-dq/internal/storage/mssql"
	_ "insurance-dq/internal/storage/mysql"
	_ "insurance-dq/internal/storage/parquet"
	_ "insurance-dq/internal/storage/postgres"
	_ "insurance-dq/internal/storage/sqlite"
)
