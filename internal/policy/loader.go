package policy

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LoadRegoFiles reads all .rego modules under dir, keyed by relative path.
// A missing directory yields an empty map, not an error, so deployments
// without policies run with the gate disabled.
func LoadRegoFiles(dir string) (map[string]string, error) {
	modules := make(map[string]string)

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return modules, nil
	}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".rego") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read rego file %s: %w", path, err)
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = path
		}
		modules[rel] = string(data)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk policy dir %s: %w", dir, err)
	}
	return modules, nil
}
