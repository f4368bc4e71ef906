package storage

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mkarlsen/world-engine/pkg/state"
)

// Templates are filesystem-backed on every storage backend: authored world
// documents shipped as JSON files under <dataDir>/templates.

func templateDir(dataDir string) string {
	return filepath.Join(dataDir, "templates")
}

func loadTemplate(dataDir, filename string) (*state.WorldState, error) {
	path := filepath.Join(templateDir(dataDir), filepath.Base(filename))

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("template not found: %s", filename)
		}
		return nil, fmt.Errorf("failed to read template file: %w", err)
	}

	var w state.WorldState
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to unmarshal template %s: %w", filename, err)
	}

	return &w, nil
}

func listTemplates(dataDir string) (map[string]string, error) {
	dir := templateDir(dataDir)
	templates := make(map[string]string)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}
		filename := filepath.Base(path)
		name := strings.TrimSuffix(filename, ".json")
		templates[name] = filename
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}

	return templates, nil
}
