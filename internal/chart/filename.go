package chart

import (
	"net/url"
	"path/filepath"
)

// PartSuffix is appended to a final file name while bytes are still being
// accumulated. The partial lives alongside the eventual final file.
const PartSuffix = ".part"

// FileName derives the final archive name for a chart from its source URL,
// falling back to the chart identifier when the URL has no usable path.
func FileName(chartID, rawurl string) string {
	if parsed, err := url.Parse(rawurl); err == nil {
		name := filepath.Base(parsed.Path)
		if name != "" && name != "." && name != "/" {
			return name
		}
	}
	return chartID + ".zip"
}

// FinalPath returns the destination path of a chart archive inside dir.
func FinalPath(dir, chartID, rawurl string) string {
	return filepath.Join(dir, FileName(chartID, rawurl))
}

// PartPath returns the partial-file path corresponding to FinalPath.
func PartPath(dir, chartID, rawurl string) string {
	return FinalPath(dir, chartID, rawurl) + PartSuffix
}
