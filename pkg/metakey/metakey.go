// Package metakey canonicalizes metadata keys for dataset images.
//
// Metadata files written by earlier versions of the editor carry keys in
// several historical shapes: backslash separators, leading "./", a
// "dataset/" prefix, or a bare dataset-name prefix. Every shape that
// refers to the same image must normalize to the same canonical key of
// the form "dataset/<dataset>/<relative/path>".
package metakey

import (
	"path"
	"strings"
)

// Make builds the canonical key for an image at the given relative path
// inside a dataset.
func Make(dataset, relative string) string {
	relative = strings.ReplaceAll(relative, "\\", "/")
	return path.Join("dataset", dataset, relative)
}

// Normalize maps a raw key from a metadata document to its canonical
// form under the given dataset. The second return is false when the key
// is empty after sanitizing and the entry should be dropped.
//
// Keys that carry a "dataset/" prefix naming a *different* dataset are
// preserved verbatim (slash-joined, not re-namespaced) so that
// cross-dataset contamination never silently rewrites foreign entries.
func Normalize(dataset, raw string) (string, bool) {
	sanitized := strings.TrimSpace(strings.ReplaceAll(raw, "\\", "/"))
	if sanitized == "" {
		return "", false
	}
	sanitized = strings.TrimPrefix(sanitized, "./")
	sanitized = strings.TrimLeft(sanitized, "/")

	parts := splitSegments(sanitized)
	if len(parts) == 0 {
		return "", false
	}
	fallback := strings.Join(parts, "/")

	hadDatasetPrefix := strings.EqualFold(parts[0], "dataset")
	rest := parts
	if hadDatasetPrefix {
		rest = parts[1:]
	}
	if len(rest) == 0 {
		// A lone "dataset" segment: keep it verbatim.
		return fallback, true
	}

	var rel []string
	switch {
	case strings.EqualFold(rest[0], dataset):
		rel = rest[1:]
	case !hadDatasetPrefix:
		rel = rest
	default:
		// "dataset/<other>/..." belongs to another dataset's namespace.
		rel = nil
	}

	if len(rel) > 0 {
		return Make(dataset, strings.Join(rel, "/")), true
	}
	return fallback, true
}

func splitSegments(s string) []string {
	var parts []string
	for _, part := range strings.Split(s, "/") {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}
