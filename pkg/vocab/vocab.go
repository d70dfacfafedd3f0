// Package vocab extracts caption vocabularies from dataset metadata.
//
// Captions are comma-separated tag lists; the vocabulary of a dataset is
// the sorted set of distinct tags across its captions.
package vocab

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"capset/pkg/dataset"
	"capset/pkg/store"
)

// SplitCaption splits a caption on commas, trimming whitespace and
// dropping empty chunks.
func SplitCaption(caption string) []string {
	var tokens []string
	for _, chunk := range strings.Split(caption, ",") {
		if chunk = strings.TrimSpace(chunk); chunk != "" {
			tokens = append(tokens, chunk)
		}
	}
	return tokens
}

// Extractor builds vocabularies from one or all datasets.
type Extractor struct {
	root  *dataset.Root
	store *store.Store
}

// New returns an Extractor over the given root and store.
func New(root *dataset.Root, st *store.Store) *Extractor {
	return &Extractor{root: root, store: st}
}

// Dataset returns the sorted distinct tags used in one dataset's captions.
func (e *Extractor) Dataset(name string) ([]string, error) {
	doc, err := e.store.Load(name)
	if err != nil {
		return nil, err
	}

	words := map[string]bool{}
	for _, entry := range doc {
		for _, token := range SplitCaption(entry.Caption) {
			words[token] = true
		}
	}
	return sortedKeys(words), nil
}

// Global returns the sorted distinct tags across every metadata document
// under the dataset root. Documents that fail to parse are skipped.
func (e *Extractor) Global() ([]string, error) {
	words := map[string]bool{}

	err := filepath.WalkDir(e.root.Path(), func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if d == nil {
				// Missing root: no vocabulary.
				return filepath.SkipAll
			}
			return nil
		}
		if d.IsDir() || d.Name() != store.MetadataFilename {
			return nil
		}

		data, err := os.ReadFile(p)
		if err != nil {
			return nil
		}
		var payload map[string]json.RawMessage
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil
		}
		for _, raw := range payload {
			var entry struct {
				Caption string `json:"caption"`
			}
			if err := json.Unmarshal(raw, &entry); err != nil {
				continue
			}
			for _, token := range SplitCaption(entry.Caption) {
				words[token] = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sortedKeys(words), nil
}

func sortedKeys(words map[string]bool) []string {
	sorted := make([]string, 0, len(words))
	for word := range words {
		sorted = append(sorted, word)
	}
	sort.Strings(sorted)
	return sorted
}
