// Package migrations embeds the per-tenant SQL changelogs and applies them.
package migrations

import "embed"

// FS holds every changelog. Each changelog is a directory of *.up.sql files with
// optional tenant-specific files under contexts/<tenantID>/.
//
//go:embed tenant
var FS embed.FS
