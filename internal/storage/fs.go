package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/starford/othala/internal/apperr"
)

// FS implements Backend backed by the local file system.
type FS struct {
	root string // absolute path to the notebook root
}

// NewFS creates a new FS backend rooted at the given directory.
// The directory must already exist and be readable; a root that exists but
// cannot be listed surfaces as a permission error so callers can prompt for
// re-grant before attempting a load.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", apperr.FromOS(err))
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	if _, err := os.ReadDir(abs); err != nil {
		return nil, fmt.Errorf("storage: probe root: %w", apperr.FromOS(err))
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute notebook root path.
func (f *FS) Root() string { return f.root }

// safePath resolves a relative posix path against the notebook root and
// rejects any result that escapes it (directory traversal).
func (f *FS) safePath(rel string) (string, error) {
	if rel == "" || rel == "." {
		return f.root, nil
	}
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: absolute paths not allowed: %s", rel)
	}
	joined := filepath.Join(f.root, cleaned)
	abs, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("storage: resolve path: %w", err)
	}
	// Ensure the resolved path is still under root.
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("storage: path escapes notebook root: %s", rel)
	}
	return abs, nil
}

// ReadFile returns the UTF-8 content of the file at path.
func (f *FS) ReadFile(path string) (File, error) {
	bin, err := f.ReadBinary(path)
	if err != nil {
		return File{}, err
	}
	return File{Content: string(bin.Data), ModifiedAt: bin.ModifiedAt, Size: bin.Size}, nil
}

// ReadBinary returns the raw bytes of the file at path.
func (f *FS) ReadBinary(path string) (BinaryFile, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return BinaryFile{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return BinaryFile{}, fmt.Errorf("storage: stat %s: %w", path, apperr.FromOS(err))
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return BinaryFile{}, fmt.Errorf("storage: read %s: %w", path, apperr.FromOS(err))
	}
	return BinaryFile{Data: data, ModifiedAt: info.ModTime(), Size: info.Size()}, nil
}

// WriteFile atomically writes content: tmp file → fsync → rename.
// Parent directories are created on demand.
func (f *FS) WriteFile(path string, content string) error {
	return f.WriteBinary(path, []byte(content))
}

// WriteBinary atomically writes data to path.
func (f *FS) WriteBinary(path string, data []byte) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", apperr.FromOS(err))
	}

	tmp, err := os.CreateTemp(dir, ".othala-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", apperr.FromOS(err))
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("storage: write temp: %w", apperr.FromOS(err))
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", apperr.FromOS(err))
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", apperr.FromOS(err))
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", apperr.FromOS(err))
	}
	success = true
	return nil
}

// DeleteEntry removes the file or directory at path.
func (f *FS) DeleteEntry(path string, recursive bool) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	if abs == f.root {
		return fmt.Errorf("storage: refusing to delete notebook root")
	}
	if recursive {
		err = os.RemoveAll(abs)
	} else {
		err = os.Remove(abs)
	}
	if err != nil {
		return fmt.Errorf("storage: delete %s: %w", path, apperr.FromOS(err))
	}
	return nil
}

// ListDirectory returns the entries of the directory at path, files before
// directories, each group sorted by name for deterministic loads.
func (f *FS) ListDirectory(path string) ([]Entry, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: list %s: %w", path, apperr.FromOS(err))
	}
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		kind := KindFile
		if e.IsDir() {
			kind = KindDirectory
		}
		out = append(out, Entry{Name: e.Name(), Kind: kind})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind == KindFile
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// Mkdir creates the directory at path along with any missing parents.
func (f *FS) Mkdir(path string) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir %s: %w", path, apperr.FromOS(err))
	}
	return nil
}

// Exists reports whether an entry exists at path.
func (f *FS) Exists(path string) (bool, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(abs); err != nil {
		if apperr.IsNotFound(apperr.FromOS(err)) {
			return false, nil
		}
		return false, fmt.Errorf("storage: stat %s: %w", path, apperr.FromOS(err))
	}
	return true, nil
}
