// Package slug builds URL-safe identifiers for shared lists.
package slug

import (
	"regexp"
	"strings"

	"github.com/dmitrijs2005/whattodo/internal/common"
)

var (
	nonWord    = regexp.MustCompile(`[^\w\s-]`)
	separators = regexp.MustCompile(`[\s_-]+`)
)

// SuffixLen is the number of random base36 characters Unique appends.
const SuffixLen = 6

// Generate lowercases text, drops everything but word characters, spaces and
// hyphens, collapses runs of separators into a single hyphen and trims
// hyphens from both ends.
func Generate(text string) string {
	s := strings.TrimSpace(strings.ToLower(text))
	s = nonWord.ReplaceAllString(s, "")
	s = separators.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// Unique returns Generate(text) followed by "-" and a random suffix.
func Unique(text string) string {
	return Generate(text) + "-" + common.MakeRandBase36String(SuffixLen)
}
