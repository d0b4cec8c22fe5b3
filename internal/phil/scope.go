// Package phil holds the hierarchical parameter trees handed to toolkit
// commands. A Scope keeps definitions in insertion order and renders them as
// PHIL text; the values are forwarded as written and never interpreted here.
package phil

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

var ErrInvalidName = errors.New("invalid parameter name")

// Scope is an ordered tree of named blocks and name = value definitions.
type Scope struct {
	entries []*entry
}

type entry struct {
	name  string
	value string
	// literal values are PHIL text and are written as given; the others are
	// single words quoted on render when needed.
	literal bool
	block   *Scope
}

func (e *entry) isBlock() bool {
	return e.block != nil
}

// New returns an empty scope.
func New() *Scope {
	return &Scope{}
}

// Empty reports whether the scope has no definitions.
func (s *Scope) Empty() bool {
	return s == nil || len(s.entries) == 0
}

// Set assigns value to the dotted path, creating blocks as needed. An existing
// definition at the same path is replaced in place. value is PHIL text, as it
// would be written on the toolkit's command line.
func (s *Scope) Set(path string, value string) error {
	parts, err := splitPath(path)
	if err != nil {
		return err
	}
	cur := s
	for _, name := range parts[:len(parts)-1] {
		cur = cur.childBlock(name)
	}
	cur.setLeaf(parts[len(parts)-1], value, true)
	return nil
}

func (s *Scope) setLeaf(name, value string, literal bool) {
	for _, e := range s.entries {
		if e.name == name && !e.isBlock() {
			e.value = value
			e.literal = literal
			return
		}
	}
	s.entries = append(s.entries, &entry{name: name, value: value, literal: literal})
}

// Get returns the value defined at the dotted path.
func (s *Scope) Get(path string) (string, bool) {
	parts, err := splitPath(path)
	if err != nil || s == nil {
		return "", false
	}
	cur := s
	for _, name := range parts[:len(parts)-1] {
		next := cur.findBlock(name)
		if next == nil {
			return "", false
		}
		cur = next
	}
	leaf := parts[len(parts)-1]
	for _, e := range cur.entries {
		if e.name == leaf && !e.isBlock() {
			return e.value, true
		}
	}
	return "", false
}

// Merge lays other over s. A definition replaces the one of the same name. A
// block that occurs once in both scopes is merged into its counterpart; any
// other block of other is appended, so repeated blocks are kept.
func (s *Scope) Merge(other *Scope) {
	if other == nil {
		return
	}
	for _, e := range other.entries {
		if !e.isBlock() {
			s.setLeaf(e.name, e.value, e.literal)
			continue
		}
		if other.countBlocks(e.name) == 1 && s.countBlocks(e.name) == 1 {
			s.findBlock(e.name).Merge(e.block)
			continue
		}
		s.entries = append(s.entries, &entry{name: e.name, block: e.block.clone()})
	}
}

func (s *Scope) clone() *Scope {
	out := &Scope{entries: make([]*entry, 0, len(s.entries))}
	for _, e := range s.entries {
		c := *e
		if e.isBlock() {
			c.block = e.block.clone()
		}
		out.entries = append(out.entries, &c)
	}
	return out
}

func (s *Scope) countBlocks(name string) int {
	n := 0
	for _, e := range s.entries {
		if e.name == name && e.isBlock() {
			n++
		}
	}
	return n
}

// appendBlock adds a block even when one with the same name exists; PHIL
// allows repeated scopes.
func (s *Scope) appendBlock(name string) *Scope {
	child := &Scope{}
	s.entries = append(s.entries, &entry{name: name, block: child})
	return child
}

func (s *Scope) childBlock(name string) *Scope {
	if existing := s.findBlock(name); existing != nil {
		return existing
	}
	return s.appendBlock(name)
}

func (s *Scope) findBlock(name string) *Scope {
	for _, e := range s.entries {
		if e.name == name && e.isBlock() {
			return e.block
		}
	}
	return nil
}

// Assignment is one flattened definition.
type Assignment struct {
	Path  string
	Value string
}

func (a Assignment) String() string {
	return a.Path + "=" + a.Value
}

// Assignments flattens the scope into dotted-path definitions in order.
func (s *Scope) Assignments() []Assignment {
	if s == nil {
		return nil
	}
	var out []Assignment
	s.flatten("", &out)
	return out
}

func (s *Scope) flatten(prefix string, out *[]Assignment) {
	for _, e := range s.entries {
		path := e.name
		if prefix != "" {
			path = prefix + "." + e.name
		}
		if e.isBlock() {
			e.block.flatten(path, out)
			continue
		}
		*out = append(*out, Assignment{Path: path, Value: e.value})
	}
}

// Render writes the scope as PHIL text.
func (s *Scope) Render(w io.Writer) error {
	if s == nil {
		return nil
	}
	return s.render(w, 0)
}

func (s *Scope) render(w io.Writer, depth int) error {
	indent := strings.Repeat("  ", depth)
	for _, e := range s.entries {
		if e.isBlock() {
			if _, err := fmt.Fprintf(w, "%s%s {\n", indent, e.name); err != nil {
				return err
			}
			if err := e.block.render(w, depth+1); err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "%s}\n", indent); err != nil {
				return err
			}
			continue
		}
		if _, err := fmt.Fprintf(w, "%s%s = %s\n", indent, e.name, e.rendered()); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scope) String() string {
	var b strings.Builder
	_ = s.Render(&b)
	return b.String()
}

func (e *entry) rendered() string {
	if e.literal && e.value != "" {
		return e.value
	}
	return Quote(e.value)
}

// Quote returns word as one PHIL word. Words PHIL would split or cut short are
// double quoted with inner quotes escaped.
func Quote(word string) string {
	if word != "" && !strings.ContainsAny(word, " \t\r\n#{}\"';") {
		return word
	}
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range word {
		if r == '"' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('"')
	return b.String()
}

// ParseAssignment splits "a.b.c=value" into path and value.
func ParseAssignment(raw string) (Assignment, error) {
	path, value, ok := strings.Cut(raw, "=")
	if !ok {
		return Assignment{}, fmt.Errorf("assignment %q must have the form name=value", raw)
	}
	path = strings.TrimSpace(path)
	if _, err := splitPath(path); err != nil {
		return Assignment{}, err
	}
	return Assignment{Path: path, Value: strings.TrimSpace(value)}, nil
}

func splitPath(path string) ([]string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidName)
	}
	parts := strings.Split(path, ".")
	for _, part := range parts {
		if err := checkName(part); err != nil {
			return nil, fmt.Errorf("%w: %q", err, path)
		}
	}
	return parts, nil
}

func checkName(name string) error {
	if name == "" || strings.ContainsAny(name, " \t\r\n{}=\"'#") {
		return ErrInvalidName
	}
	return nil
}
