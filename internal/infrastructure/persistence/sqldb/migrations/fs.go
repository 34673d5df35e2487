package migrations

import "embed"

// PostgresFS holds goose migrations for the quotes table.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// OracleFS holds plain scripts split on "/" lines, applied by OracleDialect.
//
//go:embed oracle/*.sql
var OracleFS embed.FS
