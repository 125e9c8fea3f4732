package service

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// ErrOutsideInputDir is returned for paths that resolve outside the configured input directory
var ErrOutsideInputDir = errors.New("input outside input directory")

// RestrictInputs limits AnalyzeImage and AnalyzeVideo to files under dir.
// Relative paths are then resolved against dir.
func (s *AnalysisService) RestrictInputs(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return errors.Wrapf(err, "failed to resolve input directory %s", dir)
	}
	root, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return errors.Wrapf(err, "failed to resolve input directory %s", dir)
	}
	info, err := os.Stat(root)
	if err != nil {
		return errors.Wrapf(err, "failed to stat input directory %s", dir)
	}
	if !info.IsDir() {
		return errors.Errorf("input directory %s is not a directory", dir)
	}
	s.inputDir = root
	return nil
}

// resolveInput maps a requested path onto the input directory, following symlinks.
// A path that does not exist yet is accepted when its parent lies inside; the
// pipeline reports it as not found.
func (s *AnalysisService) resolveInput(path string) (string, error) {
	if s.inputDir == "" {
		return path, nil
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.inputDir, path)
	}
	path = filepath.Clean(path)

	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		dir, dirErr := filepath.EvalSymlinks(filepath.Dir(path))
		if dirErr != nil {
			dir = filepath.Dir(path)
		}
		resolved = filepath.Join(dir, filepath.Base(path))
	}

	rel, err := filepath.Rel(s.inputDir, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.Wrapf(ErrOutsideInputDir, "%s", path)
	}
	return resolved, nil
}
