// Package manifest handles yk.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// ManifestName is the file name looked up in project directories.
const ManifestName = "yk.toml"

// Manifest represents a yk.toml project configuration.
type Manifest struct {
	Project  Project  `toml:"project"`
	Build    Build    `toml:"build"`
	Features Features `toml:"features"`

	// Dir is the directory containing the yk.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Build configures compilation output.
type Build struct {
	Output    string `toml:"output"`     // directory for .ykb artifacts
	DebugInfo bool   `toml:"debug-info"` // emit .ykd sidecars
}

// Features lists compiler features to enable or disable.
type Features struct {
	Enable  []string `toml:"enable"`
	Disable []string `toml:"disable"`
}

// Load parses a yk.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, ManifestName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find a yk.toml file, then loads and
// returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, ManifestName)); err == nil {
			return Load(dir)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// OutputPath returns the artifact path for a source file, honoring the
// manifest's output directory. With no configured output the artifact sits
// next to the source.
func (m *Manifest) OutputPath(sourcePath, ext string) string {
	base := filepath.Base(sourcePath)
	name := base[:len(base)-len(filepath.Ext(base))] + "." + ext
	if m == nil || m.Build.Output == "" {
		return filepath.Join(filepath.Dir(sourcePath), name)
	}
	out := m.Build.Output
	if !filepath.IsAbs(out) {
		out = filepath.Join(m.Dir, out)
	}
	return filepath.Join(out, name)
}
