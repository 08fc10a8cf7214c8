package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileOperations groups the filesystem primitives SingleDownloader and
// MultiDownloader share: directory creation, existence/size checks, the
// atomic part-file-to-destination rename, and partial-file bookkeeping
// for resume.
type FileOperations struct{}

// NewFileOperations builds a FileOperations. It holds no state, so one
// instance is safe to share across every downloader in a process.
func NewFileOperations() *FileOperations {
	return &FileOperations{}
}

// EnsureDir creates the destination's parent directory if it doesn't
// already exist.
func (f *FileOperations) EnsureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0755)
}

// FileExists reports whether path exists, including partial and final
// destination files.
func (f *FileOperations) FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// GetFileSize returns the current size of path in bytes.
func (f *FileOperations) GetFileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// AtomicRename moves a finished part file onto its destination path in
// one filesystem operation, so a reader never observes a half-written
// destination.
func (f *FileOperations) AtomicRename(oldPath, newPath string) error {
	return os.Rename(oldPath, newPath)
}

// DetectPartialDownload reports whether outputPath has a .part file left
// over from a prior attempt, and its current size if so.
func (f *FileOperations) DetectPartialDownload(outputPath string) (bool, int64, error) {
	partPath := outputPath + ".part"

	info, err := os.Stat(partPath)
	if os.IsNotExist(err) {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, err
	}

	return true, info.Size(), nil
}

// ValidatePartialFile confirms a .part file left from a previous attempt
// is safe to resume from: no larger than expectedSize, and still
// open-able for read/write.
func (f *FileOperations) ValidatePartialFile(partPath string, expectedSize int64) error {
	info, err := os.Stat(partPath)
	if err != nil {
		return err
	}

	if info.Size() > expectedSize {
		return fmt.Errorf("partial file size (%d) exceeds expected size (%d)", info.Size(), expectedSize)
	}

	file, err := os.OpenFile(partPath, os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("cannot access partial file: %w", err)
	}
	file.Close()

	return nil
}

// CreatePartialFile creates (or truncates) partPath and pre-allocates
// size bytes of disk space for it, so a fresh segment or single-stream
// download fails fast on insufficient space rather than mid-transfer.
func (f *FileOperations) CreatePartialFile(partPath string, size int64) (err error) {
	file, err := os.OpenFile(partPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create partial file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	if size > 0 {
		if err := file.Truncate(size); err != nil {
			return fmt.Errorf("failed to allocate file space: %w", err)
		}
	}

	return nil
}
