package stores

import (
	"errors"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/liut/parley/data/presets"
	"github.com/liut/parley/pkg/models/convo"
	"github.com/liut/parley/pkg/settings"
)

const dftPresetName = "default.yaml"

// LoadPreset returns the embedded default preset overlaid with the one named
// by settings. A name not found on disk is looked up in the embedded presets.
func LoadPreset() (convo.Preset, error) {
	return LoadPresetFrom(settings.Current.PresetFile)
}

func LoadPresetFrom(name string) (doc convo.Preset, err error) {
	var dft convo.Preset
	if dft, err = decodePreset(presets.PresetFS(), dftPresetName); err != nil {
		return
	}
	if len(name) == 0 {
		return dft, nil
	}

	var yf *os.File
	if yf, err = os.Open(name); err == nil {
		defer yf.Close()
		err = yaml.NewDecoder(yf).Decode(&doc)
	} else if errors.Is(err, fs.ErrNotExist) {
		doc, err = decodePreset(presets.PresetFS(), name)
	}
	if err != nil {
		logger().Infow("load preset fail", "file", name, "err", err)
		return dft, err
	}
	return doc.Merge(dft), nil
}

func decodePreset(fsys fs.FS, name string) (doc convo.Preset, err error) {
	var yf fs.File
	yf, err = fsys.Open(name)
	if err != nil {
		return
	}
	defer yf.Close()
	err = yaml.NewDecoder(yf).Decode(&doc)
	return
}
