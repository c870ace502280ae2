// Package metadata holds the class hierarchy of the inventory: which classes
// exist, how they inherit from each other and which classes each of them can
// contain.
package metadata

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed classes.yaml
var defaultClasses []byte

var (
	// ErrClassNotFound is returned when a class name is unknown
	ErrClassNotFound = errors.New("class not found")
	// ErrInvalidHierarchy is returned when a hierarchy document is inconsistent
	ErrInvalidHierarchy = errors.New("invalid class hierarchy")
)

// Class describes one class of business object
type Class struct {
	Name             string   `yaml:"name" json:"name"`
	Parent           string   `yaml:"parent,omitempty" json:"parent,omitempty"`
	Abstract         bool     `yaml:"abstract,omitempty" json:"abstract,omitempty"`
	ListType         bool     `yaml:"listType,omitempty" json:"list_type,omitempty"`
	PossibleChildren []string `yaml:"possibleChildren,omitempty" json:"possible_children,omitempty"`
}

type document struct {
	Classes []Class `yaml:"classes"`
}

// Hierarchy is a concurrency-safe class hierarchy
type Hierarchy struct {
	mu      sync.RWMutex
	classes map[string]*Class
	order   []string
}

// Default returns the built-in hierarchy
func Default() *Hierarchy {
	h, err := Load(bytes.NewReader(defaultClasses))
	if err != nil {
		panic(fmt.Sprintf("built-in class hierarchy: %v", err))
	}
	return h
}

// LoadFile reads a hierarchy from a YAML file
func LoadFile(path string) (*Hierarchy, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening class file: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load reads a hierarchy from YAML
func Load(r io.Reader) (*Hierarchy, error) {
	var doc document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding class hierarchy: %w", err)
	}

	h := &Hierarchy{classes: make(map[string]*Class, len(doc.Classes))}
	for i := range doc.Classes {
		c := doc.Classes[i]
		if c.Name == "" {
			return nil, fmt.Errorf("%w: class at index %d has no name", ErrInvalidHierarchy, i)
		}
		if _, dup := h.classes[c.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate class %s", ErrInvalidHierarchy, c.Name)
		}
		h.classes[c.Name] = &c
		h.order = append(h.order, c.Name)
	}

	if err := h.validate(); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Hierarchy) validate() error {
	for _, name := range h.order {
		c := h.classes[name]
		if c.Parent != "" {
			if _, ok := h.classes[c.Parent]; !ok {
				return fmt.Errorf("%w: %s extends unknown class %s", ErrInvalidHierarchy, c.Name, c.Parent)
			}
		}
		for _, child := range c.PossibleChildren {
			if _, ok := h.classes[child]; !ok {
				return fmt.Errorf("%w: %s lists unknown possible child %s", ErrInvalidHierarchy, c.Name, child)
			}
		}
		// walk up; a chain longer than the class count means a cycle
		seen := 0
		for p := c.Parent; p != ""; p = h.classes[p].Parent {
			seen++
			if seen > len(h.classes) {
				return fmt.Errorf("%w: inheritance cycle through %s", ErrInvalidHierarchy, c.Name)
			}
		}
	}
	return nil
}

// Replace swaps the contents of h with those of other
func (h *Hierarchy) Replace(other *Hierarchy) {
	other.mu.RLock()
	classes, order := other.classes, other.order
	other.mu.RUnlock()

	h.mu.Lock()
	h.classes, h.order = classes, order
	h.mu.Unlock()
}

// Exists reports whether the class is known
func (h *Hierarchy) Exists(name string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.classes[name]
	return ok
}

// Get returns a copy of the named class
func (h *Hierarchy) Get(name string) (Class, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.classes[name]
	if !ok {
		return Class{}, fmt.Errorf("%w: %s", ErrClassNotFound, name)
	}
	out := *c
	out.PossibleChildren = slices.Clone(c.PossibleChildren)
	return out, nil
}

// Classes returns all classes in declaration order
func (h *Hierarchy) Classes() []Class {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Class, 0, len(h.order))
	for _, name := range h.order {
		c := *h.classes[name]
		c.PossibleChildren = slices.Clone(c.PossibleChildren)
		out = append(out, c)
	}
	return out
}

// IsSubclassOf reports whether class is super or inherits from it. Unknown
// classes are never subclasses of anything.
func (h *Hierarchy) IsSubclassOf(class, super string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.isSubclassOf(class, super)
}

func (h *Hierarchy) isSubclassOf(class, super string) bool {
	c, ok := h.classes[class]
	for ok {
		if c.Name == super {
			return true
		}
		if c.Parent == "" {
			return false
		}
		c, ok = h.classes[c.Parent]
	}
	return false
}

// Subclasses returns the concrete classes that inherit from super, super
// included when it is concrete, sorted by name.
func (h *Hierarchy) Subclasses(super string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []string
	for name, c := range h.classes {
		if !c.Abstract && h.isSubclassOf(name, super) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// PossibleChildren returns the possible children declared on the class and
// on its ancestors.
func (h *Hierarchy) PossibleChildren(class string) ([]string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.classes[class]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrClassNotFound, class)
	}
	return h.possibleChildren(class), nil
}

func (h *Hierarchy) possibleChildren(class string) []string {
	var out []string
	for c, ok := h.classes[class]; ok; c, ok = h.classes[c.Parent] {
		for _, child := range c.PossibleChildren {
			if !slices.Contains(out, child) {
				out = append(out, child)
			}
		}
	}
	return out
}

// CanContain reports whether an instance of child may be placed under an
// instance of parent. A possible child entry also admits its subclasses.
func (h *Hierarchy) CanContain(parent, child string) bool {
	possible, err := h.PossibleChildren(parent)
	if err != nil {
		return false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, p := range possible {
		if h.isSubclassOf(child, p) {
			return true
		}
	}
	return false
}

// AddPossibleChildren declares children as possible children of parent.
// Entries already present on parent or inherited from its ancestors are
// skipped. It returns the names actually added.
func (h *Hierarchy) AddPossibleChildren(parent string, children ...string) ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.classes[parent]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrClassNotFound, parent)
	}
	for _, child := range children {
		if _, ok := h.classes[child]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrClassNotFound, child)
		}
	}
	existing := h.possibleChildren(parent)
	var added []string
	for _, child := range children {
		if slices.Contains(existing, child) || slices.Contains(added, child) {
			continue
		}
		added = append(added, child)
	}
	c.PossibleChildren = append(c.PossibleChildren, added...)
	return added, nil
}

// Write encodes the hierarchy as YAML
func (h *Hierarchy) Write(w io.Writer) error {
	doc := document{Classes: h.Classes()}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding class hierarchy: %w", err)
	}
	return enc.Close()
}

// Save writes the hierarchy to path
func (h *Hierarchy) Save(path string) error {
	var buf bytes.Buffer
	if err := h.Write(&buf); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}
