package presets

import (
	"embed"
	"io/fs"
)

//go:embed *.yaml
var presetfs embed.FS

func PresetFS() fs.FS {
	return presetfs
}
