// Package storage defines the notebook file-system abstraction.
//
// All paths are posix-style and relative to the notebook root; "." denotes
// the root itself. No native file handle crosses this boundary: callers only
// ever see paths, contents, and metadata.
package storage

import "time"

// EntryKind classifies a directory entry.
type EntryKind string

const (
	KindFile      EntryKind = "file"
	KindDirectory EntryKind = "directory"
)

// Entry is one item in a directory listing.
type Entry struct {
	Name string
	Kind EntryKind
}

// File is the result of reading a text file.
type File struct {
	Content    string
	ModifiedAt time.Time
	Size       int64
}

// BinaryFile is the result of reading a binary file.
type BinaryFile struct {
	Data       []byte
	ModifiedAt time.Time
	Size       int64
}

// Backend is the interface for notebook file operations. Implementations map
// read failures onto the apperr sentinels; callers treat apperr.ErrNotFound on
// read as "absent" and must never conflate it with apperr.ErrPermissionDenied.
type Backend interface {
	// ReadFile returns the UTF-8 content of the file at path.
	ReadFile(path string) (File, error)
	// ReadBinary returns the raw bytes of the file at path.
	ReadBinary(path string) (BinaryFile, error)
	// WriteFile atomically writes content to path, creating parent
	// directories as needed.
	WriteFile(path string, content string) error
	// WriteBinary atomically writes data to path, creating parent
	// directories as needed.
	WriteBinary(path string, data []byte) error
	// DeleteEntry removes the file or directory at path. Non-empty
	// directories require recursive.
	DeleteEntry(path string, recursive bool) error
	// ListDirectory returns the entries of the directory at path.
	ListDirectory(path string) ([]Entry, error)
	// Mkdir creates the directory at path along with any missing parents.
	// It is idempotent.
	Mkdir(path string) error
	// Exists reports whether an entry exists at path.
	Exists(path string) (bool, error)
}
