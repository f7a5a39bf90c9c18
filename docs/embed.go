package docs

import "embed"

// FS contains Markdown docs bundled with the productive binary.
//
//go:embed guide
var FS embed.FS
