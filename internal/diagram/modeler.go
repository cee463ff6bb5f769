// Package diagram defines the contract with the diagram-modeling
// collaborator and a reference in-memory implementation used by the
// terminal host and tests.
package diagram

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Modeler is the fixed interface of the diagram-modeling collaborator.
// ImportMarkup must be atomic: malformed markup is rejected without any
// partial mutation of the live model.
type Modeler interface {
	// SaveMarkup returns the current diagram markup.
	SaveMarkup() (string, error)
	// ImportMarkup replaces the live model with the given markup.
	ImportMarkup(markup string) error
}

// MemoryModeler holds diagram markup in memory and validates imports for
// XML well-formedness before swapping.
type MemoryModeler struct {
	mu     sync.Mutex
	markup string
}

// NewMemoryModeler creates a modeler holding the given initial markup.
func NewMemoryModeler(initial string) *MemoryModeler {
	return &MemoryModeler{markup: initial}
}

// SaveMarkup returns the current markup.
func (m *MemoryModeler) SaveMarkup() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.markup, nil
}

// ImportMarkup validates the markup and replaces the model. On validation
// failure the previous markup is untouched.
func (m *MemoryModeler) ImportMarkup(markup string) error {
	if err := validate(markup); err != nil {
		return fmt.Errorf("import diagram markup: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markup = markup
	return nil
}

func validate(markup string) error {
	if strings.TrimSpace(markup) == "" {
		return fmt.Errorf("empty markup")
	}
	dec := xml.NewDecoder(strings.NewReader(markup))
	for {
		_, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
