package textutil

import (
	"regexp"
	"strings"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.Trim(name, " \n\t")
	name = whitespaceRegex.ReplaceAllString(name, "")
	return name
}

func MatchName(name string, matchers []string) bool {
	name = NormalizeName(name)
	for _, m := range matchers {
		if strings.Contains(name, m) {
			return true
		}
	}
	return false
}

var illegalPathChars = regexp.MustCompile(`[\\/:*?"<>|]`)
var underscoreRuns = regexp.MustCompile(`_+`)

// SafeFolderName replaces characters that are illegal in folder names
// on common filesystems and collapses the resulting underscore runs.
func SafeFolderName(name string) string {
	name = illegalPathChars.ReplaceAllString(name, "_")
	name = underscoreRuns.ReplaceAllString(name, "_")
	return strings.Trim(name, "_ ")
}
