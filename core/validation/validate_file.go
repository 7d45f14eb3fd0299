package validation

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileCheckError describes a failed file or directory check.
type FileCheckError struct {
	Path    string
	Message string
}

func (e *FileCheckError) Error() string {
	return e.Message
}

// CheckFileExists checks that a regular file exists at the given path.
func CheckFileExists(path string) error {
	if path == "" {
		return &FileCheckError{Path: path, Message: "file path cannot be empty"}
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &FileCheckError{Path: path, Message: fmt.Sprintf("file not found: %s", path)}
		}
		return &FileCheckError{Path: path, Message: fmt.Sprintf("error checking file %s: %v", path, err)}
	}

	if info.IsDir() {
		return &FileCheckError{Path: path, Message: fmt.Sprintf("path is a directory, not a file: %s", path)}
	}

	return nil
}

// CheckDirExists checks that a directory exists at the given path.
func CheckDirExists(path string) error {
	if path == "" {
		return &FileCheckError{Path: path, Message: "directory path cannot be empty"}
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &FileCheckError{Path: path, Message: fmt.Sprintf("directory not found: %s", path)}
		}
		return &FileCheckError{Path: path, Message: fmt.Sprintf("error checking directory %s: %v", path, err)}
	}

	if !info.IsDir() {
		return &FileCheckError{Path: path, Message: fmt.Sprintf("path is a file, not a directory: %s", path)}
	}

	return nil
}

// CheckDirWritable checks that a directory exists and the current user can
// create files in it, verified by writing and removing a probe file.
func CheckDirWritable(path string) error {
	if err := CheckDirExists(path); err != nil {
		return err
	}

	probe := filepath.Join(path, ".write_probe")
	file, err := os.Create(probe)
	if err != nil {
		return &FileCheckError{Path: path, Message: fmt.Sprintf("directory %s is not writable: %v", path, err)}
	}
	file.Close()
	os.Remove(probe)

	return nil
}
