// Package curriculum loads the trial curriculum from YAML. The default
// curriculum is embedded in the binary.
package curriculum

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/imperium-ai/imperium/internal/domain/trial"
)

//go:embed default.yaml
var defaultYAML []byte

// Default returns the embedded curriculum.
func Default() (*trial.Curriculum, error) {
	return Parse(defaultYAML)
}

// Load reads a curriculum file. An empty path means the embedded default.
func Load(path string) (*trial.Curriculum, error) {
	if path == "" {
		return Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("curriculum: read %s: %w", path, err)
	}

	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("curriculum: %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes and validates a curriculum document. Unknown fields are
// rejected so typos in hand-written files do not silently drop content.
func Parse(data []byte) (*trial.Curriculum, error) {
	var c trial.Curriculum

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("curriculum: empty document")
		}
		return nil, fmt.Errorf("curriculum: decode: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
