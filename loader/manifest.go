package loader

import (
	"bytes"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/agentrt/core"
)

// ManifestFiles lists the manifest file names probed in a module directory,
// in priority order.
var ManifestFiles = []string{"manifest.yaml", "manifest.yml", "manifest.json", "manifest.toml"}

// ReadManifest locates, decodes and validates the manifest of the module in
// dir. Every failure is a *core.ManifestError.
func ReadManifest(dir string) (*core.Manifest, string, error) {
	module := filepath.Base(dir)
	for _, name := range ManifestFiles {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, path, &core.ManifestError{Module: module, Path: path, Reason: "unreadable", Err: err}
		}
		m, err := DecodeManifest(filepath.Ext(name), data)
		if err != nil {
			return nil, path, &core.ManifestError{Module: module, Path: path, Reason: "malformed", Err: err}
		}
		if err := m.Validate(module); err != nil {
			var me *core.ManifestError
			if errors.As(err, &me) {
				me.Path = path
			}
			return nil, path, err
		}
		return m, path, nil
	}
	return nil, "", &core.ManifestError{Module: module, Reason: "no manifest file found"}
}

// DecodeManifest decodes data according to the file extension (.yaml, .yml,
// .json or .toml). It does not validate.
func DecodeManifest(ext string, data []byte) (*core.Manifest, error) {
	var m core.Manifest
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, err
		}
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(&m); err != nil {
			return nil, err
		}
	case ".toml":
		if err := toml.Unmarshal(data, &m); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("unsupported manifest format " + ext)
	}
	return &m, nil
}
