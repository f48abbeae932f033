package batch

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/fidlab/quadmatch/internal/loader"
)

// Pair names one reference/moving frame pair to register.
type Pair struct {
	Ref   string `json:"ref"`
	Other string `json:"other"`
}

// discoverPairs resolves the configured discovery mode into concrete
// frame pairs: an explicit manifest when one is given, otherwise two
// directories paired by shared relative name.
func discoverPairs(cfg *Config) ([]Pair, error) {
	if cfg.Manifest != "" {
		return pairsFromManifest(cfg.Manifest)
	}
	return pairsFromDirectories(cfg.RefDir, cfg.OtherDir, cfg.Recursive,
		cfg.IncludePatterns, cfg.ExcludePatterns)
}

// pairsFromManifest reads a CSV manifest with one "ref,moving" row per
// line. Lines starting with # are comments. Relative paths are resolved
// against the manifest's own directory.
func pairsFromManifest(path string) ([]Pair, error) {
	f, err := os.Open(path) //nolint:gosec // G304: manifest path is expected user input
	if err != nil {
		return nil, fmt.Errorf("cannot open manifest %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = 2
	reader.Comment = '#'
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	pairs := make([]Pair, 0, len(rows))
	for _, row := range rows {
		pairs = append(pairs, Pair{
			Ref:   resolveAgainst(dir, row[0]),
			Other: resolveAgainst(dir, row[1]),
		})
	}
	return pairs, nil
}

func resolveAgainst(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

// pairsFromDirectories pairs frame files from two directories by shared
// relative name, sorted. Files present in only one directory are skipped.
func pairsFromDirectories(refDir, otherDir string, recursive bool,
	include, exclude []string,
) ([]Pair, error) {
	if refDir == "" || otherDir == "" {
		return nil, errors.New("directory discovery needs both a reference and a moving directory")
	}

	refFiles, err := discoverFrameFiles(refDir, recursive, include, exclude)
	if err != nil {
		return nil, err
	}
	otherFiles, err := discoverFrameFiles(otherDir, recursive, include, exclude)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(refFiles))
	for rel := range refFiles {
		if _, ok := otherFiles[rel]; ok {
			names = append(names, rel)
		}
	}
	sort.Strings(names)

	pairs := make([]Pair, 0, len(names))
	for _, rel := range names {
		pairs = append(pairs, Pair{Ref: refFiles[rel], Other: otherFiles[rel]})
	}
	return pairs, nil
}

// discoverFrameFiles walks dir and returns loadable frame files keyed by
// their path relative to dir.
func discoverFrameFiles(dir string, recursive bool, include, exclude []string) (map[string]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot access %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	files := make(map[string]string)
	walkFn := func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			if !recursive && path != dir {
				return filepath.SkipDir
			}
			return nil
		}

		if !loader.IsSupportedFrame(path) || !shouldIncludeFile(path, include, exclude) {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files[rel] = path
		return nil
	}

	if err := filepath.Walk(dir, walkFn); err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	return files, nil
}

// shouldIncludeFile applies exclude patterns first, then include patterns;
// with no include patterns everything not excluded passes. Patterns match
// against the base name.
func shouldIncludeFile(path string, include, exclude []string) bool {
	base := filepath.Base(path)
	for _, pattern := range exclude {
		if matched, _ := filepath.Match(pattern, base); matched {
			return false
		}
	}

	if len(include) == 0 {
		return true
	}
	for _, pattern := range include {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}
