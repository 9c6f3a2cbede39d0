package shared

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// illegalNameChars are removed from anything used as a path component.
var illegalNameChars = strings.NewReplacer(
	"<", "",
	">", "",
	":", "",
	"\"", "",
	"/", "",
	"\\", "",
	"|", "",
	"?", "",
	"*", "",
	"'", "",
)

// SanitizeFileName strips characters that are illegal in file names on common filesystems,
// drops control characters, normalizes to NFC and trims surrounding whitespace and dots.
func SanitizeFileName(name string) string {
	name = norm.NFC.String(name)
	name = illegalNameChars.Replace(name)
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	return strings.Trim(strings.TrimSpace(name), ". ")
}
