package connfile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Loader reads the backend's connection registry file
type Loader struct {
	filePath string
}

// NewLoader creates a new registry loader
func NewLoader(filePath string) *Loader {
	return &Loader{
		filePath: filePath,
	}
}

// Path returns the file the loader reads
func (l *Loader) Path() string {
	return l.filePath
}

// Load reads and parses the registry file. JSON files are accepted as well,
// JSON being a subset of YAML.
func (l *Loader) Load() (*RegistryFile, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read connections file: %w", err)
	}

	var file RegistryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse connections file: %w", err)
	}

	return &file, nil
}
