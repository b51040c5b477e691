package enums

import "fmt"

// PrintOrientation is the page orientation preference applied to claimed jobs.
type PrintOrientation string

const (
	PrintOrientationPortrait  PrintOrientation = "portrait"
	PrintOrientationLandscape PrintOrientation = "landscape"
)

var validPrintOrientations = []PrintOrientation{
	PrintOrientationPortrait,
	PrintOrientationLandscape,
}

// String returns the literal string for the orientation.
func (p PrintOrientation) String() string {
	return string(p)
}

// IsValid reports whether the orientation is known.
func (p PrintOrientation) IsValid() bool {
	for _, candidate := range validPrintOrientations {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePrintOrientation converts raw input into a PrintOrientation.
func ParsePrintOrientation(value string) (PrintOrientation, error) {
	for _, candidate := range validPrintOrientations {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid print orientation %q", value)
}
