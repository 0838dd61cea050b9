package platform

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/aretw0/dispensa/internal/config"
)

// SystemDir is the hidden directory holding local state.
const SystemDir = ".dispensa"

// FindRoot recursively looks upwards for a project root indicator.
// Indicators are: .dispensa directory or dispensa.yaml file.
// If found, returns the absolute path to the root.
func FindRoot(startDir string) (string, error) {
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	dir := abs
	for {
		if hasFile(dir, SystemDir) || hasFile(dir, config.FileName) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("root not found")
}

// ConfigFile returns the configuration file of root, or "" if there is none.
// dispensa.yaml wins over .dispensa/config.yaml.
func ConfigFile(root string) string {
	for _, name := range []string{config.FileName, filepath.Join(SystemDir, "config.yaml")} {
		if hasFile(root, name) {
			return filepath.Join(root, name)
		}
	}
	return ""
}

func hasFile(dir, name string) bool {
	path := filepath.Join(dir, name)
	_, err := os.Stat(path)
	return err == nil
}
