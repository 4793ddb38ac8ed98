package petpal

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed stories.yaml
var defaultCatalogYAML []byte

// Catalog is the fixed, read-only collection of pet narratives. It is loaded
// once at startup and never mutated, so it needs no locking.
type Catalog struct {
	stories []StoryEntry
	byID    map[string]StoryEntry
}

// ParseCatalog decodes a YAML catalog document and validates it.
// It is the canonical entry point for loading catalogs.
func ParseCatalog(data []byte) (*Catalog, error) {
	var doc struct {
		Stories []StoryEntry `yaml:"stories"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("petpal: parse catalog: %w", err)
	}

	c := &Catalog{
		stories: doc.Stories,
		byID:    make(map[string]StoryEntry, len(doc.Stories)),
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	for _, st := range c.stories {
		c.byID[st.ID] = st
	}
	return c, nil
}

// LoadCatalog reads a catalog from a YAML file, or returns the embedded
// default catalog when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return ParseCatalog(defaultCatalogYAML)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("petpal: read catalog %s: %w", path, err)
	}
	return ParseCatalog(data)
}

// validate checks the catalog for structural correctness. An empty catalog is
// a fatal configuration error.
func (c *Catalog) validate() error {
	if len(c.stories) == 0 {
		return ErrEmptyCatalog
	}
	seen := make(map[string]struct{}, len(c.stories))
	for i, st := range c.stories {
		if strings.TrimSpace(st.ID) == "" {
			return fmt.Errorf("petpal: stories[%d]: id must not be empty", i)
		}
		if _, dup := seen[st.ID]; dup {
			return fmt.Errorf("petpal: stories[%d]: duplicate id %q", i, st.ID)
		}
		seen[st.ID] = struct{}{}
		if strings.TrimSpace(st.Text) == "" {
			return fmt.Errorf("petpal: stories[%d] (%q): text must not be empty", i, st.ID)
		}
		if strings.TrimSpace(st.Theme) == "" {
			return fmt.Errorf("petpal: stories[%d] (%q): theme must not be empty", i, st.ID)
		}
	}
	return nil
}

// Stories returns all entries in fixed catalog order.
func (c *Catalog) Stories() []StoryEntry {
	return c.stories
}

// Len returns the number of catalog entries.
func (c *Catalog) Len() int {
	return len(c.stories)
}

// ByID looks up a story by id. Returns ErrNotFound on a miss, which signals a
// catalog/profile inconsistency upstream.
func (c *Catalog) ByID(storyID string) (StoryEntry, error) {
	st, ok := c.byID[storyID]
	if !ok {
		return StoryEntry{}, fmt.Errorf("petpal: story %q: %w", storyID, ErrNotFound)
	}
	return st, nil
}
