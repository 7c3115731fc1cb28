package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nao1215/sitewalk/internal/model"
)

// DefaultFormats are written when no format is requested.
var DefaultFormats = []Format{FormatJSON, FormatCSV}

// WriteFiles writes one report file per format into dir and returns the
// written paths. dir is created if needed.
func WriteFiles(dir string, run *model.Run, version string, formats ...Format) ([]string, error) {
	if len(formats) == 0 {
		formats = DefaultFormats
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}

	paths := make([]string, 0, len(formats))
	for _, format := range formats {
		path := filepath.Join(dir, format.FileName())
		if err := writeFile(path, format, run, version); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(path string, format Format, run *model.Run, version string) (err error) {
	f, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()

	if _, err := NewWriter(format, f, version).Write(run); err != nil {
		return fmt.Errorf("failed to write %s report: %w", format, err)
	}
	return nil
}
