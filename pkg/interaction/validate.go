// pkg/interaction/validate.go
package interaction

import (
	"errors"
	"strings"
	"unicode"
)

// ValidateNonEmpty ensures the input is not empty.
func ValidateNonEmpty(input string) error {
	if strings.TrimSpace(input) == "" {
		return errors.New("input cannot be empty")
	}
	return nil
}

// NormalizeYesNoInput reports the answer and whether the input was recognised.
func NormalizeYesNoInput(input string) (bool, bool) {
	switch strings.TrimSpace(strings.ToLower(input)) {
	case YesShort, YesLong:
		return true, true
	case NoShort, NoLong:
		return false, true
	}
	return false, false // unknown
}

// sanitize strips control characters other than tab from a line of input.
func sanitize(input string) string {
	return strings.Map(func(r rune) rune {
		if r == '\t' || !unicode.IsControl(r) {
			return r
		}
		return -1
	}, input)
}
