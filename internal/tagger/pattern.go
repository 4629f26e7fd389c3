package tagger

import (
	"regexp"
	"strings"
)

// NormalizePrefix trims whitespace and stray leading/trailing separators.
func NormalizePrefix(prefix string) string {
	return strings.Trim(strings.TrimSpace(prefix), "/")
}

// ListPrefix is the listing prefix for a normalized location:
// "<namespace>/<prefix>/", or "<prefix>/" with no namespace.
func ListPrefix(namespace, prefix string) string {
	namespace = NormalizePrefix(namespace)
	if namespace == "" {
		return prefix + "/"
	}
	return namespace + "/" + prefix + "/"
}

// BuildMatchPattern anchors listPrefix followed by any of filenames, each
// followed by anything and ending in ".<extension>":
//
//	^<listPrefix>(<f1>.*\.<ext>|<f2>.*\.<ext>)$
//
// Every literal is quoted, so the result always compiles.
func BuildMatchPattern(listPrefix string, filenames []string, extension string) *regexp.Regexp {
	ext := regexp.QuoteMeta(strings.TrimPrefix(extension, "."))

	alts := make([]string, len(filenames))
	for i, fn := range filenames {
		alts[i] = regexp.QuoteMeta(fn) + `.*\.` + ext
	}

	return regexp.MustCompile("^" + regexp.QuoteMeta(listPrefix) + "(" + strings.Join(alts, "|") + ")$")
}
