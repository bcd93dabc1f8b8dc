package appfs

import "embed"

// FS holds the SQL migrations and the static assets (email templates, password lists).
// Base layouts start with "_", hence the all: prefix.
//go:embed migrations all:assets
var FS embed.FS
