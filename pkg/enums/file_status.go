package enums

import "fmt"

// FileStatus tracks an uploaded document through its processing lifecycle.
type FileStatus string

const (
	FileStatusPending    FileStatus = "pending"
	FileStatusProcessing FileStatus = "processing"
	FileStatusCompleted  FileStatus = "completed"
	FileStatusFailed     FileStatus = "failed"
)

var validFileStatuses = []FileStatus{
	FileStatusPending,
	FileStatusProcessing,
	FileStatusCompleted,
	FileStatusFailed,
}

// String returns the literal string for the status.
func (f FileStatus) String() string {
	return string(f)
}

// IsValid reports whether the status is known.
func (f FileStatus) IsValid() bool {
	for _, candidate := range validFileStatuses {
		if candidate == f {
			return true
		}
	}
	return false
}

// ParseFileStatus converts raw input into a FileStatus.
func ParseFileStatus(value string) (FileStatus, error) {
	for _, candidate := range validFileStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid file status %q", value)
}
