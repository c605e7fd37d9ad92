package site

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/conneroisu/jsxsite/internal/build"
	"github.com/conneroisu/jsxsite/internal/errors"
)

// copyPassthrough mirrors every passthrough source into the output directory
// and returns the number of files written. Missing sources are skipped.
func (s *Site) copyPassthrough(ctx context.Context) (int, error) {
	copied := 0
	for _, pc := range s.cfg.Passthrough {
		from := s.cfg.Path(pc.From)
		to := filepath.Join(s.cfg.OutputDir(), pc.To)

		n, err := copyTree(ctx, from, to)
		if err != nil {
			return copied, errors.NewIOError(errors.ErrCodeWriteFailed, "passthrough copy failed", err).
				WithContext("from", pc.From).WithContext("to", pc.To)
		}
		if n > 0 {
			s.logger.Debug(ctx, "copied passthrough files", "from", pc.From, "to", pc.To, "count", n)
		}
		copied += n
	}
	return copied, nil
}

func copyTree(ctx context.Context, from, to string) (int, error) {
	info, err := os.Stat(from)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		return copyFile(from, to)
	}

	copied := 0
	err = filepath.WalkDir(from, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(from, path)
		if err != nil {
			return err
		}
		n, err := copyFile(path, filepath.Join(to, rel))
		copied += n
		return err
	})
	return copied, err
}

func copyFile(from, to string) (int, error) {
	content, err := os.ReadFile(from)
	if err != nil {
		return 0, err
	}
	wrote, err := build.WriteIfChanged(to, content)
	if err != nil || !wrote {
		return 0, err
	}
	return 1, nil
}
