package database

import _ "embed"

// Schema is the fully migrated schema, used by tests that want tables
// without running the migrator.
//
// To regenerate:
//   go generate ./internal/database

//go:embed schema.sql
var Schema string

//go:generate sh -c "cd ../.. && go run internal/database/tools/generate_schema.go"
