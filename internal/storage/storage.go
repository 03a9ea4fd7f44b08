package storage

import "io"

// RecordingFile accepts the ordered chunk stream of one recording session.
// Writes append; Commit makes everything written durable and closes the
// file, after which it is addressable by Name.
type RecordingFile interface {
	io.Writer

	Commit() error

	// Discard drops a recording that will never be committed.
	Discard() error

	// Name is the storage-relative name of the file.
	Name() string
}

// Storage is the durable target for finished recordings.
type Storage interface {
	CreateRecording(nameHint string) (RecordingFile, error)
	OpenFile(path string) (io.ReadSeekCloser, error)
	DeleteFile(path string) error
}
