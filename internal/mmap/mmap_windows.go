//go:build windows

package mmap

import "fmt"

// MmapFile mirrors the Unix type's shape so callers can type-check
// without platform-specific build tags of their own.
type MmapFile struct {
	Data         []byte
	File         interface{ Close() error }
	FileSize     int
	MappedOffset int
	MappedLength int
}

func NewMmapFile(filePath string) (*MmapFile, error) {
	return nil, fmt.Errorf("mmap: not supported on windows")
}

func NewMmapFileRegion(filePath string, offset, length int) (*MmapFile, error) {
	return nil, fmt.Errorf("mmap: not supported on windows")
}

func (mr *MmapFile) Close() error { return nil }
