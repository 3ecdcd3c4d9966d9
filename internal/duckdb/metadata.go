package duckdb

import (
	"os"
	"strconv"
	"time"
)

// FileFingerprint holds stat-based identity for a file.
// The zero value stands for an input that was not given.
type FileFingerprint struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// StatFile creates a FileFingerprint from an on-disk file. An empty path
// yields the zero fingerprint.
func StatFile(path string) (FileFingerprint, error) {
	if path == "" {
		return FileFingerprint{}, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return FileFingerprint{}, err
	}
	return FileFingerprint{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// metaFields renders the fingerprint as key=value pairs under prefix.
func (f FileFingerprint) metaFields(prefix string) [][2]string {
	return [][2]string{
		{prefix + "_size", strconv.FormatInt(f.Size, 10)},
		{prefix + "_modtime", f.ModTime.UTC().Format(time.RFC3339Nano)},
	}
}
