package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

// FileSource reads the roster from a local path, re-opened on every fetch so
// an operator can drop a new export in place between runs.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Name() string { return "file://" + s.path }

func (s *FileSource) Fetch(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrRosterMissing, s.path)
	}
	if err != nil {
		return nil, fmt.Errorf("open roster: %w", err)
	}
	return f, nil
}
