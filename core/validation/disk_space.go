package validation

import (
	"fmt"
	"os"
	"path/filepath"

	"pdf_backend/core"
)

// DiskSpaceInfo contains disk space figures for the filesystem holding a
// path.
type DiskSpaceInfo struct {
	Path           string
	Total          int64
	Free           int64
	Used           int64
	TotalFormatted string
	FreeFormatted  string
	UsedFormatted  string
	UsedPercent    float64
}

// DiskSpaceError indicates insufficient disk space.
type DiskSpaceError struct {
	Path      string
	Required  int64
	Available int64
	Message   string
}

func (e *DiskSpaceError) Error() string {
	return e.Message
}

// GetDiskSpace returns disk space information for the filesystem containing
// path. A missing path falls back to its nearest existing parent.
func GetDiskSpace(path string) (*DiskSpaceInfo, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			parent := filepath.Dir(path)
			if parent != "" && parent != path {
				return GetDiskSpace(parent)
			}
		}
		return nil, fmt.Errorf("validation: cannot stat %s: %w", path, err)
	}

	total, free, err := getDiskSpace(path)
	if err != nil {
		return nil, fmt.Errorf("validation: disk space query for %s failed: %w", path, err)
	}

	used := total - free
	info := &DiskSpaceInfo{
		Path:           path,
		Total:          total,
		Free:           free,
		Used:           used,
		TotalFormatted: core.FormatBytes(total),
		FreeFormatted:  core.FormatBytes(free),
		UsedFormatted:  core.FormatBytes(used),
	}
	if total > 0 {
		info.UsedPercent = float64(used) / float64(total) * 100
	}
	return info, nil
}

// CheckDiskSpace verifies the filesystem containing path has at least
// required bytes free.
func CheckDiskSpace(path string, required int64) error {
	info, err := GetDiskSpace(path)
	if err != nil {
		return err
	}

	if info.Free < required {
		return &DiskSpaceError{
			Path:      path,
			Required:  required,
			Available: info.Free,
			Message: fmt.Sprintf("insufficient disk space at %s: %s free, %s required",
				path, core.FormatBytes(info.Free), core.FormatBytes(required)),
		}
	}
	return nil
}
