package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Source is a tree of configuration fragments. Implementations wrap a
// local directory, an archive, or anything else that can present an fs.FS
// with the expected layout: experiment and project files at the root,
// defaults/, definitions/, and outcomes/<platform>/ below it.
type Source interface {
	// FS returns the fragment tree.
	FS() fs.FS

	// LastModified returns the modification time of one fragment, or the
	// zero time when unknown.
	LastModified(path string) time.Time

	// Hash returns a hex content hash of one fragment, or the empty
	// string when unknown.
	Hash(path string) string

	// String identifies the source in logs and errors.
	String() string

	// Close releases resources held by the source.
	Close() error
}

// DirSource is a Source backed by a local directory.
type DirSource struct {
	dir string
}

// NewDirSource opens a local configuration directory.
func NewDirSource(dir string) (*DirSource, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, &fs.PathError{Op: "open", Path: dir, Err: fs.ErrInvalid}
	}
	return &DirSource{dir: dir}, nil
}

// FS implements Source.
func (s *DirSource) FS() fs.FS {
	return os.DirFS(s.dir)
}

// LastModified implements Source.
func (s *DirSource) LastModified(path string) time.Time {
	info, err := os.Stat(filepath.Join(s.dir, filepath.FromSlash(path)))
	if err != nil {
		return time.Time{}
	}
	return info.ModTime().UTC()
}

// Hash implements Source.
func (s *DirSource) Hash(path string) string {
	data, err := os.ReadFile(filepath.Join(s.dir, filepath.FromSlash(path)))
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// String implements Source.
func (s *DirSource) String() string {
	return s.dir
}

// Close implements Source.
func (s *DirSource) Close() error {
	return nil
}
