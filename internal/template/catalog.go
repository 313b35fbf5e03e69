package template

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Key identifies the column-mapping/validation schema the importer applies
type Key string

const (
	KeyAirFile   Key = "air_file"
	KeyHotelFile Key = "hotel_file"
	KeyCarsFile  Key = "cars_file"
)

// Entry maps one (domain, subtype) pair to a template key
type Entry struct {
	Domain  string `yaml:"domain" json:"domain"`
	Subtype string `yaml:"subtype" json:"subtype"`
	Key     Key    `yaml:"key" json:"key"`
}

// File is the on-disk YAML layout of a catalog
type File struct {
	Fallback  Key     `yaml:"fallback"`
	Templates []Entry `yaml:"templates"`
}

// DefaultEntries are the travel templates the expense pages ship with.
var DefaultEntries = []Entry{
	{Domain: "travel", Subtype: "Air", Key: KeyAirFile},
	{Domain: "travel", Subtype: "Hotels", Key: KeyHotelFile},
	{Domain: "travel", Subtype: "Cars", Key: KeyCarsFile},
}

type pair struct {
	domain  string
	subtype string
}

// Catalog resolves (domain, subtype) pairs to template keys.
// Matching ignores case and surrounding whitespace.
type Catalog struct {
	entries  map[pair]Entry
	fallback Key
	mu       sync.RWMutex
}

// NewCatalog creates a catalog from entries; unmapped pairs resolve to fallback.
func NewCatalog(entries []Entry, fallback Key) (*Catalog, error) {
	c := &Catalog{
		entries:  make(map[pair]Entry, len(entries)),
		fallback: fallback,
	}

	for _, e := range entries {
		if e.Key == "" {
			return nil, fmt.Errorf("template for %s/%s has no key", e.Domain, e.Subtype)
		}
		p := normalize(e.Domain, e.Subtype)
		if _, exists := c.entries[p]; exists {
			return nil, fmt.Errorf("duplicate template for %s/%s", e.Domain, e.Subtype)
		}
		c.entries[p] = e
	}

	return c, nil
}

// Default returns the built-in travel catalog with the given fallback.
func Default(fallback Key) *Catalog {
	c, err := NewCatalog(DefaultEntries, fallback)
	if err != nil {
		panic(err)
	}
	return c
}

// LoadFile reads a YAML catalog. A non-empty fallback argument overrides
// the file's own fallback.
func LoadFile(path string, fallback Key) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template catalog: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse template catalog: %w", err)
	}

	if fallback != "" {
		f.Fallback = fallback
	}

	return NewCatalog(f.Templates, f.Fallback)
}

// Resolve returns the template key for a pair. The boolean is false when
// the fallback was used.
func (c *Catalog) Resolve(domain, subtype string) (Key, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if e, exists := c.entries[normalize(domain, subtype)]; exists {
		return e.Key, true
	}

	return c.fallback, false
}

// Fallback returns the key used for unmapped pairs.
func (c *Catalog) Fallback() Key {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fallback
}

// Entries returns all mapped templates ordered by domain then subtype.
func (c *Catalog) Entries() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Domain != entries[j].Domain {
			return entries[i].Domain < entries[j].Domain
		}
		return entries[i].Subtype < entries[j].Subtype
	})

	return entries
}

func normalize(domain, subtype string) pair {
	return pair{
		domain:  strings.ToLower(strings.TrimSpace(domain)),
		subtype: strings.ToLower(strings.TrimSpace(subtype)),
	}
}
