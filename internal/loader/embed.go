package loader

import "embed"

//go:embed data
var embeddedData embed.FS
