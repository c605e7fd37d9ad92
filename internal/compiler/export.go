package compiler

import (
	"regexp"
)

var (
	explicitDefault = []*regexp.Regexp{
		regexp.MustCompile(`(?m)^\s*export\s+default\b`),
		regexp.MustCompile(`export\s*\{[^}]*\bas\s+default\b`),
	}

	// Candidates in priority order. The first pattern with a match wins;
	// within one pattern the earliest declaration wins.
	candidates = []*regexp.Regexp{
		regexp.MustCompile(`(?m)^(?:export\s+)?(?:async\s+)?function\s*\*?\s*([A-Za-z_$][\w$]*)\s*\(`),
		regexp.MustCompile(`(?m)^(?:export\s+)?const\s+([A-Za-z_$][\w$]*)\s*=`),
		regexp.MustCompile(`(?m)^(?:export\s+)?let\s+([A-Za-z_$][\w$]*)\s*=`),
		regexp.MustCompile(`(?m)^(?:export\s+)?var\s+([A-Za-z_$][\w$]*)\s*=`),
	}
)

// HasDefaultExport reports whether code already declares a default export.
func HasDefaultExport(code string) bool {
	for _, re := range explicitDefault {
		if re.MatchString(code) {
			return true
		}
	}
	return false
}

// DetectEntryPoint returns the top-level binding that should become the
// default export: the first function declaration, else the first const,
// let, then var. Only declarations starting at column 0 count.
func DetectEntryPoint(code string) (string, bool) {
	for _, re := range candidates {
		if m := re.FindStringSubmatch(code); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// EnsureDefaultExport returns code with a default export, appending one for
// the detected entry point when none is declared. ok is false when there is
// neither an explicit default nor a candidate binding.
func EnsureDefaultExport(code string) (out string, name string, ok bool) {
	if HasDefaultExport(code) {
		return code, "", true
	}
	name, found := DetectEntryPoint(code)
	if !found {
		return code, "", false
	}
	return code + "\nexport default " + name + ";\n", name, true
}
