// Package store owns the per-dataset metadata document.
//
// Each dataset directory holds one metadata.json mapping canonical image
// keys to entries. Every load runs the keys through metakey.Normalize so
// documents written by earlier format versions heal themselves, and every
// save re-normalizes and writes deterministically sorted, 4-space
// indented JSON so the file diffs cleanly.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"

	"capset/pkg/dataset"
	"capset/pkg/metakey"
)

// MetadataFilename is the document file inside each dataset directory.
const MetadataFilename = "metadata.json"

// Entry is one image's metadata. TrainResolution is [height, width],
// both grid multiples.
type Entry struct {
	Caption         string `json:"caption"`
	TrainResolution []int  `json:"train_resolution,omitempty"`
}

// Document maps canonical keys to entries for one dataset.
type Document map[string]Entry

// Store loads and saves dataset metadata documents. All read-modify-write
// cycles share one process-wide lock; two processes sharing a dataset
// directory can still race, which is an accepted limitation.
type Store struct {
	root *dataset.Root
	mu   sync.Mutex
}

// New returns a Store over the given dataset root.
func New(root *dataset.Root) *Store {
	return &Store{root: root}
}

// Load reads a dataset's document. A missing file yields an empty
// document; a file that is not a JSON object is treated as empty rather
// than failing the dataset.
func (s *Store) Load(name string) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(name)
}

// Save re-normalizes the document's keys and writes it to the dataset's
// metadata file via a temp file and rename.
func (s *Store) Save(name string, doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(name, doc)
}

// Mutate runs fn against the entry for the image at the given relative
// path, holding the store lock across the whole load→mutate→save cycle.
// fn may perform the image transform itself so that file and metadata
// changes land under one critical section. A missing entry starts empty.
func (s *Store) Mutate(name, relative string, fn func(entry *Entry) error) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(name)
	if err != nil {
		return Entry{}, err
	}

	key := metakey.Make(name, relative)
	entry := doc[key]
	if err := fn(&entry); err != nil {
		return Entry{}, err
	}
	doc[key] = entry

	if err := s.save(name, doc); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// Path returns the dataset's metadata file path, creating an empty
// document first if none exists.
func (s *Store) Path(name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir, err := s.root.Dir(name)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, MetadataFilename)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := s.save(name, Document{}); err != nil {
			return "", err
		}
	}
	return path, nil
}

func (s *Store) load(name string) (Document, error) {
	dir, err := s.root.Dir(name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(dir, MetadataFilename))
	if errors.Is(err, fs.ErrNotExist) {
		return Document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read metadata for %q: %w", name, err)
	}
	return decodeDocument(name, data), nil
}

func (s *Store) save(name string, doc Document) error {
	dir, err := s.root.Dir(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	data, err := encodeDocument(name, doc)
	if err != nil {
		return fmt.Errorf("encode metadata for %q: %w", name, err)
	}

	path := filepath.Join(dir, MetadataFilename)
	tmp := filepath.Join(dir, "."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// decodeDocument parses and self-heals a raw metadata payload. Keys are
// normalized in document order with a first-wins collision policy;
// malformed entry values are coerced or dropped rather than propagated.
func decodeDocument(name string, data []byte) Document {
	doc := Document{}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return doc
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return doc
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return doc
		}
		rawKey, ok := tok.(string)
		if !ok {
			return doc
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return doc
		}

		key, ok := metakey.Normalize(name, rawKey)
		if !ok {
			continue
		}
		entry, ok := coerceEntry(value)
		if !ok {
			continue
		}
		if _, exists := doc[key]; !exists {
			doc[key] = entry
		}
	}
	return doc
}

// coerceEntry validates one raw entry value. Non-object values are
// rejected; a non-string caption becomes empty and a train_resolution
// that is not a numeric pair is discarded.
func coerceEntry(value json.RawMessage) (Entry, bool) {
	var fields map[string]any
	if err := json.Unmarshal(value, &fields); err != nil || fields == nil {
		return Entry{}, false
	}

	var entry Entry
	if caption, ok := fields["caption"].(string); ok {
		entry.Caption = caption
	}
	if raw, ok := fields["train_resolution"].([]any); ok && len(raw) == 2 {
		resolution := make([]int, 0, 2)
		for _, v := range raw {
			f, ok := v.(float64)
			if !ok {
				break
			}
			resolution = append(resolution, int(f))
		}
		if len(resolution) == 2 {
			entry.TrainResolution = resolution
		}
	}
	return entry, true
}

// encodeDocument re-normalizes keys (first-wins over sorted key order,
// for determinism) and marshals with sorted keys and 4-space indent.
func encodeDocument(name string, doc Document) ([]byte, error) {
	keys := make([]string, 0, len(doc))
	for key := range doc {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	normalized := Document{}
	for _, rawKey := range keys {
		key, ok := metakey.Normalize(name, rawKey)
		if !ok {
			continue
		}
		if _, exists := normalized[key]; !exists {
			normalized[key] = doc[rawKey]
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(normalized); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
