// Package storage persists the checklist as a JSON file and owns its in-memory copy.
package storage

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileName is the checklist file name inside the host storage directory.
const FileName = "checklist.json"

// Load reads the checklist at path. A missing file is an empty checklist.
func Load(path string) ([]Item, error) {
	items, _, err := load(path)
	return items, err
}

func load(path string) ([]Item, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Item{}, nil, nil
		}
		return nil, nil, fmt.Errorf("read checklist: %w", err)
	}
	items, err := Decode(data)
	if err != nil {
		return nil, nil, &ParseError{Path: path, Err: err}
	}
	return items, data, nil
}

// Decode parses a checklist document. The document must be a JSON array;
// its entries are taken as-is (see Item).
func Decode(data []byte) ([]Item, error) {
	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	if items == nil {
		return nil, errors.New("checklist document is not an array")
	}
	return items, nil
}

// Encode renders items as a 2-space indented JSON array.
func Encode(items []Item) ([]byte, error) {
	if items == nil {
		items = []Item{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(items); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Save overwrites the checklist at path. The content is written to a temporary
// file in the same directory and renamed into place.
func Save(path string, items []Item) error {
	_, err := save(path, items)
	return err
}

func save(path string, items []Item) ([]byte, error) {
	data, err := Encode(items)
	if err != nil {
		return nil, fmt.Errorf("marshal checklist: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create checklist directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".checklist-*.json")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write checklist: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close checklist: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return nil, fmt.Errorf("chmod checklist: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return nil, fmt.Errorf("replace checklist: %w", err)
	}
	return data, nil
}

// Store owns the in-memory checklist and the file backing it. Every mutation
// is persisted before it returns, under a single lock, so concurrent callers
// observe the same ordering a single-threaded writer would produce.
type Store struct {
	path string

	mu    sync.Mutex
	items []Item
	hash  string
}

// Open loads the checklist at path into a new Store.
func Open(path string) (*Store, error) {
	items, data, err := load(path)
	if err != nil {
		return nil, err
	}
	return &Store{path: path, items: items, hash: hashOf(data)}, nil
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Items returns a copy of the checklist in order.
func (s *Store) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneItems(s.items)
}

// Len returns the number of items.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Hash returns the SHA-256 of the file content last read or written.
// It is empty when the file has never existed.
func (s *Store) Hash() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hash
}

// Index returns the position of the first item with the given name.
func (s *Store) Index(name string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOf(s.items, name)
	return i, i >= 0
}

// SetChecked sets the checked flag of the item at index and persists the
// whole checklist. The in-memory change is rolled back if the save fails.
func (s *Store) SetChecked(index int, checked bool) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setCheckedLocked(index, checked)
}

// SetCheckedByName is SetChecked addressed by item name.
func (s *Store) SetCheckedByName(name string, checked bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := indexOf(s.items, name)
	if i < 0 {
		return -1, fmt.Errorf("%w: %q", ErrItemNotFound, name)
	}
	if _, err := s.setCheckedLocked(i, checked); err != nil {
		return -1, err
	}
	return i, nil
}

// SetCheckedAt is SetChecked that fails with ErrItemNotFound unless the item
// at index is still called name.
func (s *Store) SetCheckedAt(index int, name string, checked bool) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index >= 0 && index < len(s.items) && s.items[index].Name != name {
		return Item{}, fmt.Errorf("%w: %q at %d", ErrItemNotFound, name, index)
	}
	return s.setCheckedLocked(index, checked)
}

func (s *Store) setCheckedLocked(index int, checked bool) (Item, error) {
	if index < 0 || index >= len(s.items) {
		return Item{}, fmt.Errorf("%w: %d (have %d)", ErrIndexOutOfRange, index, len(s.items))
	}

	updated, err := s.items[index].WithChecked(checked)
	if err != nil {
		return Item{}, fmt.Errorf("checklist item %d: %w", index, err)
	}

	prev := s.items[index]
	s.items[index] = updated
	data, err := save(s.path, s.items)
	if err != nil {
		s.items[index] = prev
		return Item{}, err
	}
	s.hash = hashOf(data)
	return s.items[index], nil
}

// Replace swaps the whole checklist and persists it. On save failure the
// previous checklist is kept.
func (s *Store) Replace(items []Item) error {
	next := cloneItems(items)
	if next == nil {
		next = []Item{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := save(s.path, next)
	if err != nil {
		return err
	}
	s.items = next
	s.hash = hashOf(data)
	return nil
}

// Reload re-reads the backing file. It reports whether the content differed
// from what the store last read or wrote; on error the store is unchanged.
// A missing file is an error matching os.ErrNotExist, not an empty checklist.
func (s *Store) Reload() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return false, fmt.Errorf("read checklist: %w", err)
	}
	h := hashOf(data)
	if h == s.hash {
		return false, nil
	}
	items, err := Decode(data)
	if err != nil {
		return false, &ParseError{Path: s.path, Err: err}
	}
	s.items = items
	s.hash = h
	return true, nil
}

func indexOf(items []Item, name string) int {
	for i, it := range items {
		if it.Name == name {
			return i
		}
	}
	return -1
}

func cloneItems(items []Item) []Item {
	if items == nil {
		return nil
	}
	out := make([]Item, len(items))
	copy(out, items)
	return out
}

func hashOf(data []byte) string {
	if data == nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashFile returns the content hash of the file at path in the same form as
// Store.Hash, or "" when the file does not exist.
func HashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	return hashOf(data), nil
}
