package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lehigh-university-libraries/tryon/internal/models"
)

//go:embed default_catalog.yaml
var defaultCatalog []byte

// CategoryAll selects every item
const CategoryAll = "all"

// ErrNotFound is returned for an unknown catalog item id
var ErrNotFound = errors.New("catalog item not found")

// Category is a collection section of the catalog
type Category struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Catalog is the preset clothing catalog
type Catalog struct {
	Categories []Category           `json:"categories" yaml:"categories"`
	Items      []models.CatalogItem `json:"items" yaml:"items"`
}

// Default returns the built-in catalog
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("built-in catalog is invalid: %v", err))
	}
	return c
}

// Load reads a catalog file, falling back to the built-in catalog when path
// does not exist
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Debug("Catalog file not found, using built-in catalog", "path", path)
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates catalog YAML
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	known := make(map[string]bool, len(c.Categories))
	for _, cat := range c.Categories {
		known[cat.ID] = true
	}
	seen := make(map[string]bool, len(c.Items))
	for _, it := range c.Items {
		if it.ID == "" || it.Name == "" || it.ImageRef == "" {
			return nil, fmt.Errorf("catalog item %q is missing id, name or image", it.ID)
		}
		if seen[it.ID] {
			return nil, fmt.Errorf("duplicate catalog item id %q", it.ID)
		}
		seen[it.ID] = true
		if !known[it.Category] {
			return nil, fmt.Errorf("catalog item %q has unknown category %q", it.ID, it.Category)
		}
	}
	return &c, nil
}

// ItemsIn returns the items of a category; CategoryAll or "" returns all
func (c *Catalog) ItemsIn(category string) []models.CatalogItem {
	if category == "" || category == CategoryAll {
		return append([]models.CatalogItem(nil), c.Items...)
	}
	var out []models.CatalogItem
	for _, it := range c.Items {
		if it.Category == category {
			out = append(out, it)
		}
	}
	return out
}

// Search matches query case-insensitively against name, description,
// category and tags
func (c *Catalog) Search(query string) []models.CatalogItem {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return c.ItemsIn(CategoryAll)
	}
	var out []models.CatalogItem
	for _, it := range c.Items {
		if matches(it, q) {
			out = append(out, it)
		}
	}
	return out
}

func matches(it models.CatalogItem, q string) bool {
	fields := append([]string{it.Name, it.Description, it.Category}, it.Tags...)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

// Get returns a catalog item by id
func (c *Catalog) Get(id string) (*models.CatalogItem, error) {
	for i := range c.Items {
		if c.Items[i].ID == id {
			return &c.Items[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Handoff builds the record for trying on a catalog item
func (c *Catalog) Handoff(id string, mode models.Mode) (models.HandoffRecord, error) {
	it, err := c.Get(id)
	if err != nil {
		return models.HandoffRecord{}, err
	}
	return models.HandoffRecord{
		ImageRef:    it.ImageRef,
		DisplayName: it.Name,
		Mode:        mode,
	}, nil
}

// HasImage reports whether ref is the image of some catalog item
func (c *Catalog) HasImage(ref string) bool {
	for _, it := range c.Items {
		if it.ImageRef == ref {
			return true
		}
	}
	return false
}
