package platelbl

import (
	"fmt"
	"os"
	"strings"
)

// Vocabulary is an ordered, duplicate free list of class names. The position of a name is its
// numeric class id. A Vocabulary is immutable once constructed and safe for concurrent use.
type Vocabulary struct {
	names []string
	index map[string]int
}

// NewVocabulary returns a Vocabulary with the given names, in order.
//
// Empty or duplicate names are rejected since they would make the position based ids ambiguous.
func NewVocabulary(names ...string) (*Vocabulary, error) {
	v := &Vocabulary{
		names: make([]string, len(names)),
		index: make(map[string]int, len(names)),
	}
	for i, name := range names {
		if name == "" {
			return nil, fmt.Errorf("empty class name at position %d", i)
		}
		if j, dup := v.index[name]; dup {
			return nil, fmt.Errorf("duplicate class name %q at positions %d and %d", name, j, i)
		}
		v.names[i] = name
		v.index[name] = i
	}
	return v, nil
}

// LoadVocabulary reads a vocabulary from the file at path, one class name per line. Surrounding
// white space and blank lines are ignored.
func LoadVocabulary(path string) (*Vocabulary, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(lines))
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			names = append(names, l)
		}
	}

	v, err := NewVocabulary(names...)
	if err != nil {
		return nil, fmt.Errorf("invalid vocabulary in %q: %v", path, err)
	}
	return v, nil
}

// Index returns the class id for name.
func (v *Vocabulary) Index(name string) (int, bool) {
	i, ok := v.index[name]
	return i, ok
}

// Name returns the class name for id.
func (v *Vocabulary) Name(id int) (string, bool) {
	if id < 0 || id >= len(v.names) {
		return "", false
	}
	return v.names[id], true
}

// Len is the number of classes.
func (v *Vocabulary) Len() int {
	return len(v.names)
}

// Names returns a copy of the class names in id order.
func (v *Vocabulary) Names() []string {
	return append([]string(nil), v.names...)
}

// Write writes the vocabulary to path in the format read by LoadVocabulary.
func (v *Vocabulary) Write(path string) error {
	content := strings.Join(v.names, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("cannot write file %q: %v", path, err)
	}
	return nil
}
