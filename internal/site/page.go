package site

import (
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// PageInfo is exposed to every page as data.page.
type PageInfo struct {
	// InputPath is the source path relative to the project root.
	InputPath string
	// OutputPath is the output path relative to the output directory.
	OutputPath string
	// URL is the site-absolute URL of the output.
	URL string
	// FileSlug is the page name, or its directory name for index pages.
	FileSlug string
}

// Map returns the page data as seen by components.
func (p PageInfo) Map() map[string]any {
	return map[string]any{
		"inputPath":  p.InputPath,
		"outputPath": p.OutputPath,
		"url":        p.URL,
		"fileSlug":   p.FileSlug,
	}
}

func (s *Site) pageInfo(page string) PageInfo {
	return NewPageInfo(s.cfg.Root, s.cfg.InputDir(), page)
}

// NewPageInfo describes the page at abs. pages/about.jsx maps to about.html
// and pages/blog/index.jsx to blog/index.html.
func NewPageInfo(root, pagesDir, abs string) PageInfo {
	rel, err := filepath.Rel(pagesDir, abs)
	if err != nil {
		rel = filepath.Base(abs)
	}
	rel = norm.NFC.String(filepath.ToSlash(rel))
	stem := strings.TrimSuffix(rel, path.Ext(rel))
	out := stem + ".html"

	input := abs
	if r, err := filepath.Rel(root, abs); err == nil {
		input = r
	}

	url := "/" + out
	if path.Base(stem) == "index" {
		url = "/" + strings.TrimSuffix(out, "index.html")
	}

	slug := path.Base(stem)
	if slug == "index" {
		slug = path.Base(path.Dir(stem))
		if slug == "." {
			slug = ""
		}
	}

	return PageInfo{
		InputPath:  norm.NFC.String(filepath.ToSlash(input)),
		OutputPath: out,
		URL:        url,
		FileSlug:   slug,
	}
}
