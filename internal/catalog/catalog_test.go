package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/lehigh-university-libraries/tryon/internal/models"
)

const testYAML = `
categories:
  - {id: shirts, name: Shirts}
  - {id: sarees, name: Sarees}
items:
  - {id: navy-polo, name: Navy Polo Shirt, category: shirts, image: images/navy_polo.png, tags: [casual]}
  - {id: red-silk, name: Red Silk Saree, category: sarees, image: images/red.png, description: Festive silk}
  - {id: white-formal, name: White Formal Shirt, category: shirts, image: images/white.png}
`

func TestDefaultCatalog(t *testing.T) {
	c := Default()
	if len(c.Items) == 0 || len(c.Categories) == 0 {
		t.Fatal("Expected built-in catalog to have items and categories")
	}
}

func TestItemsIn(t *testing.T) {
	c, err := Parse([]byte(testYAML))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	tests := []struct {
		category string
		want     int
	}{
		{category: "all", want: 3},
		{category: "", want: 3},
		{category: "shirts", want: 2},
		{category: "sarees", want: 1},
		{category: "custom", want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.category, func(t *testing.T) {
			if got := len(c.ItemsIn(tt.category)); got != tt.want {
				t.Errorf("Expected %d items, got %d", tt.want, got)
			}
		})
	}
}

func TestSearch(t *testing.T) {
	c, err := Parse([]byte(testYAML))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		query string
		want  []string
	}{
		{query: "SILK", want: []string{"red-silk"}},
		{query: "festive", want: []string{"red-silk"}},
		{query: "casual", want: []string{"navy-polo"}},
		{query: "shirt", want: []string{"navy-polo", "white-formal"}},
		{query: "velvet", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := c.Search(tt.query)
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %v, got %d items", tt.want, len(got))
			}
			for i, it := range got {
				if it.ID != tt.want[i] {
					t.Errorf("Position %d: expected %s, got %s", i, tt.want[i], it.ID)
				}
			}
		})
	}
}

func TestParseValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "unknown category", yaml: "categories: []\nitems:\n  - {id: a, name: A, category: x, image: a.png}\n"},
		{name: "duplicate id", yaml: "categories: [{id: c, name: C}]\nitems:\n  - {id: a, name: A, category: c, image: a.png}\n  - {id: a, name: B, category: c, image: b.png}\n"},
		{name: "missing image", yaml: "categories: [{id: c, name: C}]\nitems:\n  - {id: a, name: A, category: c}\n"},
		{name: "bad yaml", yaml: "items: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.yaml)); err == nil {
				t.Error("Expected parse error")
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	if err := os.WriteFile(path, []byte(testYAML), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(c.Items) != 3 {
		t.Errorf("Expected 3 items, got %d", len(c.Items))
	}

	fallback, err := Load(filepath.Join(dir, "missing.yaml"))
	if err != nil {
		t.Fatalf("Load of missing file failed: %v", err)
	}
	if len(fallback.Items) != len(Default().Items) {
		t.Error("Expected built-in catalog for a missing file")
	}
}

func TestHandoff(t *testing.T) {
	c, err := Parse([]byte(testYAML))
	if err != nil {
		t.Fatal(err)
	}

	rec, err := c.Handoff("navy-polo", models.ModeCamera)
	if err != nil {
		t.Fatalf("Handoff failed: %v", err)
	}
	want := models.HandoffRecord{ImageRef: "images/navy_polo.png", DisplayName: "Navy Polo Shirt", Mode: models.ModeCamera}
	if rec != want {
		t.Errorf("Expected %+v, got %+v", want, rec)
	}

	if _, err := c.Handoff("nope", models.ModeCamera); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestHasImage(t *testing.T) {
	c, err := Parse([]byte(testYAML))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		ref  string
		want bool
	}{
		{ref: "images/red.png", want: true},
		{ref: "images/other.png", want: false},
		{ref: "", want: false},
	}
	for _, tt := range tests {
		if got := c.HasImage(tt.ref); got != tt.want {
			t.Errorf("HasImage(%q): expected %v, got %v", tt.ref, tt.want, got)
		}
	}
}
