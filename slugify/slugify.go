// Package slugify implements the Slug Canonicaliser: deriving a stable,
// URL-safe identifier for a service from its line names, origin and
// destination.
package slugify

import (
	"regexp"
	"strings"

	"github.com/uktransitdata/corpus-pipeline/model"
)

var safeChars = regexp.MustCompile(`[^a-zA-Z0-9\-\+\.\|]`)

// Slug builds the canonical slug for a service: its line names joined by
// "+", then its origin and destination each with " / " collapsed to a
// single space and spaces turned into hyphens, lower-cased, and finally
// stripped of anything outside [a-zA-Z0-9-+.|].
func Slug(lineNames []string, origin, destination string) model.Slug {
	lineNameList := strings.Join(lineNames, "+")
	slug := lineNameList + "-" + dashify(origin) + "-" + dashify(destination)
	slug = strings.ToLower(slug)
	slug = safeChars.ReplaceAllString(slug, "")
	return model.Slug(slug)
}

func dashify(s string) string {
	s = strings.ReplaceAll(s, " / ", " ")
	s = strings.ReplaceAll(s, " ", "-")
	return s
}
