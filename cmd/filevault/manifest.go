package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// manifest describes a batch upload. Paths are relative to the manifest
// file unless absolute.
type manifest struct {
	OwnerType string          `yaml:"owner_type"`
	OwnerID   string          `yaml:"owner_id"`
	Temp      bool            `yaml:"temp"`
	Files     []manifestEntry `yaml:"files"`
}

type manifestEntry struct {
	Path        string `yaml:"path"`
	Filename    string `yaml:"filename"`
	ContentType string `yaml:"content_type"`
	Description string `yaml:"description"`
}

func loadManifest(path string) (manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return manifest{}, err
	}
	var m manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return manifest{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(m.Files) == 0 {
		return manifest{}, fmt.Errorf("%s: no files listed", path)
	}

	base := filepath.Dir(path)
	for i := range m.Files {
		entry := &m.Files[i]
		entry.Path = strings.TrimSpace(entry.Path)
		if entry.Path == "" {
			return manifest{}, fmt.Errorf("%s: files[%d]: path is required", path, i)
		}
		if !filepath.IsAbs(entry.Path) {
			entry.Path = filepath.Join(base, entry.Path)
		}
		if entry.Filename == "" {
			entry.Filename = filepath.Base(entry.Path)
		}
	}
	return m, nil
}
