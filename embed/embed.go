package embed

import "embed"

// Assets is the front-end shell served when no static origin is configured.
//
//go:embed index.html favicon.svg manifest.webmanifest
var Assets embed.FS
