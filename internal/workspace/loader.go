// Package workspace implements the chunked workspace loader: it walks a
// directory tree, keeps only source/manifest files under a size cap,
// and returns them in deterministic path order so that ingestion runs
// are reproducible. Grounded on workspace_loader.py.
package workspace

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"
)

// ExcludedDirs names directories never descended into.
var ExcludedDirs = map[string]bool{
	".git":          true,
	".venv":         true,
	"__pycache__":   true,
	"node_modules":  true,
	".mypy_cache":   true,
	".pytest_cache": true,
	".tox":          true,
	".eggs":         true,
	"venv":          true,
}

// IncludedExtensions names the file extensions the loader collects.
var IncludedExtensions = map[string]bool{
	".go":   true,
	".py":   true,
	".yaml": true,
	".yml":  true,
}

// MaxFileSizeBytes is the per-file size cap; larger files are skipped
// rather than truncated, matching workspace_loader.py's
// MAX_FILE_SIZE_BYTES.
const MaxFileSizeBytes = 1_048_576

// File is one loaded source/manifest file: a forward-slash-normalized
// path relative to the workspace root, and its content.
type File struct {
	Path    string
	Content string
}

// LoadDirectory walks root and returns every included, size-bounded,
// UTF-8-decodable file, sorted by path for determinism. A root that
// does not exist or is not a directory yields an empty, non-error
// result, matching the Python original's defensive os.path.isdir check.
func LoadDirectory(root string) ([]File, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(absRoot)
	if err != nil || !info.IsDir() {
		return nil, nil
	}

	var files []File
	err = filepath.WalkDir(absRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != absRoot && ExcludedDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if !IncludedExtensions[ext] {
			return nil
		}
		fi, err := d.Info()
		if err != nil || fi.Size() > MaxFileSizeBytes {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil || !utf8.Valid(data) {
			return nil
		}
		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return nil
		}
		files = append(files, File{
			Path:    filepath.ToSlash(rel),
			Content: string(data),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// ChunkFiles splits files into batches of at most chunkSize, preserving
// order — used to feed the ingestion pipeline's AST-parse stage (local
// or remote) in bounded-memory batches instead of loading an entire
// monorepo's file list into one process step.
func ChunkFiles(files []File, chunkSize int) [][]File {
	if chunkSize <= 0 {
		chunkSize = len(files)
		if chunkSize == 0 {
			return nil
		}
	}
	var chunks [][]File
	for start := 0; start < len(files); start += chunkSize {
		end := start + chunkSize
		if end > len(files) {
			end = len(files)
		}
		chunks = append(chunks, files[start:end])
	}
	return chunks
}
