package validation

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCheckFileExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "present.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"existing file", file, false},
		{"missing file", filepath.Join(dir, "absent.txt"), true},
		{"directory not a file", dir, true},
		{"empty path", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckFileExists(tt.path)
			if (err != nil) != tt.wantErr {
				t.Errorf("CheckFileExists(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
		})
	}
}

func TestCheckDirWritable(t *testing.T) {
	dir := t.TempDir()

	if err := CheckDirWritable(dir); err != nil {
		t.Errorf("temp dir should be writable: %v", err)
	}
	if err := CheckDirWritable(filepath.Join(dir, "missing")); err == nil {
		t.Error("missing dir should fail")
	}

	// The probe file must not be left behind.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("probe left %d entries behind", len(entries))
	}
}

func TestValidateBaseURL(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"http://solr:8983/solr/repo", false},
		{"https://index.example.com", false},
		{"", true},
		{"ftp://host", true},
		{"http://", true},
		{"   ", true},
	}

	for _, tt := range tests {
		if err := ValidateBaseURL(tt.url); (err != nil) != tt.wantErr {
			t.Errorf("ValidateBaseURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
		}
	}
}

func TestGetDiskSpace(t *testing.T) {
	info, err := GetDiskSpace(t.TempDir())
	if err != nil {
		t.Fatalf("GetDiskSpace: %v", err)
	}
	if info.Total <= 0 {
		t.Error("total space should be positive")
	}
	if info.Free < 0 || info.Free > info.Total {
		t.Errorf("free space %d out of range (total %d)", info.Free, info.Total)
	}
	if info.FreeFormatted == "" {
		t.Error("formatted figures should be populated")
	}
}

func TestCheckDiskSpace(t *testing.T) {
	dir := t.TempDir()

	if err := CheckDiskSpace(dir, 1); err != nil {
		t.Errorf("one byte should always be available: %v", err)
	}

	// An absurd requirement must fail with a DiskSpaceError.
	err := CheckDiskSpace(dir, 1<<62)
	if err == nil {
		t.Fatal("expected insufficient space error")
	}
	if _, ok := err.(*DiskSpaceError); !ok {
		t.Errorf("expected *DiskSpaceError, got %T", err)
	}
}
