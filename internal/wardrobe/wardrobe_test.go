package wardrobe

import (
	"context"
	"errors"
	"image"
	"strings"
	"testing"
	"time"

	"github.com/lehigh-university-libraries/tryon/internal/images"
	"github.com/lehigh-university-libraries/tryon/internal/models"
	"github.com/lehigh-university-libraries/tryon/internal/storage"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	data, err := images.EncodePNG(image.NewRGBA(image.Rect(0, 0, 2, 2)))
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func newCollection(t *testing.T) (*Collection, storage.KV) {
	t.Helper()
	kv := storage.NewMemory()
	c := New(kv, 0)
	fixed := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }
	return c, kv
}

func TestAddItem(t *testing.T) {
	c, _ := newCollection(t)
	ctx := context.Background()

	item, err := c.Add(ctx, Upload{Filename: "red shirt.png", ContentType: "image/png", Data: pngBytes(t)})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if item.Name != "red shirt" || item.DisplayName != "Custom red shirt" {
		t.Errorf("Unexpected names: %q / %q", item.Name, item.DisplayName)
	}
	if item.Category != CategoryCustom || item.UploadDate != "2025-03-14" {
		t.Errorf("Unexpected category/date: %q / %q", item.Category, item.UploadDate)
	}
	if !strings.HasPrefix(item.ImageRef, "data:image/png;base64,") {
		t.Errorf("Expected PNG data URI, got %.30s", item.ImageRef)
	}
}

func TestAddRejectsInvalidFiles(t *testing.T) {
	tests := []struct {
		name string
		up   Upload
	}{
		{name: "text file", up: Upload{Filename: "notes.txt", ContentType: "text/plain", Data: []byte("hello")}},
		{name: "image type but not an image", up: Upload{Filename: "x.png", ContentType: "image/png", Data: []byte("hello")}},
		{name: "too large", up: Upload{Filename: "big.png", ContentType: "image/png", Data: make([]byte, images.DefaultMaxUploadBytes+1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, kv := newCollection(t)
			ctx := context.Background()

			if _, err := c.Add(ctx, tt.up); !errors.Is(err, images.ErrInvalidFile) {
				t.Errorf("Expected ErrInvalidFile, got %v", err)
			}
			if _, err := kv.Get(ctx, StorageKey); !errors.Is(err, storage.ErrNotFound) {
				t.Error("Expected collection to stay unwritten after rejected upload")
			}
			items, _ := c.List(ctx)
			if len(items) != 0 {
				t.Errorf("Expected no items, got %d", len(items))
			}
		})
	}
}

func TestIDsAreUnique(t *testing.T) {
	c, _ := newCollection(t)
	ctx := context.Background()

	seen := map[int64]bool{}
	for i := 0; i < 3; i++ {
		item, err := c.Add(ctx, Upload{Filename: "a.png", ContentType: "image/png", Data: pngBytes(t)})
		if err != nil {
			t.Fatal(err)
		}
		if seen[item.ID] {
			t.Errorf("Duplicate id %d", item.ID)
		}
		seen[item.ID] = true
	}
}

func TestDeleteKeepsOrder(t *testing.T) {
	c, _ := newCollection(t)
	ctx := context.Background()

	var ids []int64
	for _, name := range []string{"a.png", "b.png", "c.png", "d.png"} {
		item, err := c.Add(ctx, Upload{Filename: name, ContentType: "image/png", Data: pngBytes(t)})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, item.ID)
	}

	if err := c.Delete(ctx, ids[1]); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	items, err := c.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a", "c", "d"}
	if len(items) != len(want) {
		t.Fatalf("Expected %d items, got %d", len(want), len(items))
	}
	for i, it := range items {
		if it.Name != want[i] {
			t.Errorf("Position %d: expected %s, got %s", i, want[i], it.Name)
		}
	}

	if err := c.Delete(ctx, 12345); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown id, got %v", err)
	}
}

func TestDisplayNameIsSanitized(t *testing.T) {
	c, _ := newCollection(t)
	item, err := c.Add(context.Background(), Upload{
		Filename:    `<img src=x onerror=alert(1)>shirt.png`,
		ContentType: "image/png",
		Data:        pngBytes(t),
	})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(item.DisplayName, "<") {
		t.Errorf("Expected markup stripped, got %q", item.DisplayName)
	}
}

func TestHandoffForCustomItem(t *testing.T) {
	c, _ := newCollection(t)
	ctx := context.Background()

	item, err := c.Add(ctx, Upload{Filename: "coat.png", ContentType: "image/png", Data: pngBytes(t)})
	if err != nil {
		t.Fatal(err)
	}
	rec, err := c.Handoff(ctx, item.ID, models.ModeUpload)
	if err != nil {
		t.Fatalf("Handoff failed: %v", err)
	}
	if !rec.IsCustom || rec.DisplayName != "Custom coat" || rec.ImageRef != item.ImageRef || rec.Mode != models.ModeUpload {
		t.Errorf("Unexpected record %+v", rec)
	}
}
