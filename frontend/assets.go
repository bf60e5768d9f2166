// Package frontend embeds the desktop UI served by the Wails asset server.
package frontend

import "embed"

// Assets holds index.html and everything it references.
//
//go:embed index.html
var Assets embed.FS
