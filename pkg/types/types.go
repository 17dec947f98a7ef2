package types

import "fmt"

// FileType distinguishes the two kinds of entries a backend can hold.
type FileType uint8

const (
	FileTypeFile FileType = iota
	FileTypeDirectory
)

// String returns a human-readable name for the file type.
func (t FileType) String() string {
	switch t {
	case FileTypeFile:
		return "file"
	case FileTypeDirectory:
		return "directory"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// Metadata describes a path at query time. Size is the byte length of a
// file's content and always 0 for directories.
type Metadata struct {
	Type FileType
	Size int64
}

// IsDir reports whether the metadata describes a directory.
func (m Metadata) IsDir() bool {
	return m.Type == FileTypeDirectory
}
