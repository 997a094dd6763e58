// Package payloads provides named, ordered payload sequences for fuzz runs.
package payloads

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"wsfuzz/internal/domain"
)

// Catalog maps a label to an ordered payload sequence. Labels keep their
// registration order.
type Catalog struct {
	names []string
	sets  map[string][]string
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{sets: make(map[string][]string)}
}

// Add registers (or replaces) a set. The slice is copied.
func (c *Catalog) Add(name string, items []string) {
	if _, ok := c.sets[name]; !ok {
		c.names = append(c.names, name)
	}
	c.sets[name] = append([]string(nil), items...)
}

// Names returns set labels in registration order.
func (c *Catalog) Names() []string {
	return append([]string(nil), c.names...)
}

// Get returns a copy of the named set.
func (c *Catalog) Get(name string) ([]string, error) {
	items, ok := c.sets[name]
	if !ok {
		return nil, domain.NewDomainError("Catalog.Get", domain.ErrPayloadSetNotFound, name)
	}
	return append([]string(nil), items...), nil
}

// Lookup resolves name case-insensitively.
func (c *Catalog) Lookup(name string) ([]string, error) {
	if items, err := c.Get(name); err == nil {
		return items, nil
	}
	for _, n := range c.names {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return c.Get(n)
		}
	}
	return nil, domain.NewDomainError("Catalog.Lookup", domain.ErrPayloadSetNotFound, name)
}

// Len returns the number of sets.
func (c *Catalog) Len() int { return len(c.names) }

// ParseCustom splits user-supplied payload text into one payload per line.
// Lines are trimmed; blank lines and lines starting with '#' are skipped.
func ParseCustom(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

// LoadFile reads a custom payload list from path.
func LoadFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read payload file: %w", err)
	}
	return ParseCustom(string(data)), nil
}

// Sequence returns the decimal integers from start to end inclusive.
func Sequence(start, end int) []string {
	if end < start {
		return nil
	}
	out := make([]string, 0, end-start+1)
	for i := start; i <= end; i++ {
		out = append(out, strconv.Itoa(i))
	}
	return out
}
