package audit

import "embed"

// MigrationFS embeds all SQL migration files into the compiled binary,
// the same go:embed shape the teacher's internal/db package uses.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
