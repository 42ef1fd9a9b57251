package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/danielolaszy/relnotes/internal/logging"
)

// LocalSink writes dumps below Dir.
type LocalSink struct {
	Dir     string
	Formats []Format
}

// Save writes one file per format.
func (s LocalSink) Save(_ context.Context, d Dump) ([]string, error) {
	var written []string
	for _, f := range s.Formats {
		data, err := Encode(d, f)
		if err != nil {
			return written, err
		}

		name := filepath.Join(s.Dir, filepath.FromSlash(ObjectName(d, f)))
		if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
			return written, fmt.Errorf("failed to create output directory: %w", err)
		}
		if err := os.WriteFile(name, data, 0o644); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", name, err)
		}

		logging.Info("saved issues to file", "path", name, "issues", len(d.Issues))
		written = append(written, name)
	}
	return written, nil
}
