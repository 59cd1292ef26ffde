// Package wardrobe manages the user's uploaded clothing items.
//
// The whole collection lives as one JSON array under a single store key and
// is rewritten in full on every mutation.
package wardrobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/lehigh-university-libraries/tryon/internal/images"
	"github.com/lehigh-university-libraries/tryon/internal/models"
	"github.com/lehigh-university-libraries/tryon/internal/storage"
)

// StorageKey is the key holding the serialized collection
const StorageKey = "uploadedClothingItems"

// CategoryCustom is the category of every uploaded item
const CategoryCustom = "custom"

// ErrNotFound is returned for an unknown item id
var ErrNotFound = errors.New("item not found")

// Upload is a file submitted for the custom gallery
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Collection is the persisted list of uploaded items
type Collection struct {
	kv       storage.KV
	maxBytes int64
	policy   *bluemonday.Policy
	now      func() time.Time
	mu       sync.Mutex
}

// New creates a collection stored in kv. maxBytes <= 0 uses the default limit.
func New(kv storage.KV, maxBytes int64) *Collection {
	return &Collection{
		kv:       kv,
		maxBytes: maxBytes,
		policy:   bluemonday.StrictPolicy(),
		now:      time.Now,
	}
}

// List returns the items in insertion order
func (c *Collection) List(ctx context.Context) ([]models.UploadedItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load(ctx)
}

// Get returns a single item
func (c *Collection) Get(ctx context.Context, id int64) (*models.UploadedItem, error) {
	items, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].ID == id {
			return &items[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
}

// Add validates an upload and appends it to the collection. Invalid uploads
// are rejected before anything is read from or written to the store.
func (c *Collection) Add(ctx context.Context, up Upload) (*models.UploadedItem, error) {
	if err := images.ValidateUpload(up.ContentType, int64(len(up.Data)), c.maxBytes); err != nil {
		return nil, err
	}
	if _, _, err := images.Decode(up.Data); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	items, err := c.load(ctx)
	if err != nil {
		return nil, err
	}

	now := c.now()
	id := now.UnixMilli()
	for _, it := range items {
		if it.ID >= id {
			id = it.ID + 1
		}
	}

	name := c.itemName(up.Filename)
	mediaType := strings.TrimSpace(strings.Split(up.ContentType, ";")[0])
	item := models.UploadedItem{
		ID:          id,
		Name:        name,
		DisplayName: "Custom " + name,
		ImageRef:    images.EncodeDataURI(mediaType, up.Data),
		UploadDate:  now.Format("2006-01-02"),
		Category:    CategoryCustom,
	}

	items = append(items, item)
	if err := c.save(ctx, items); err != nil {
		return nil, err
	}

	slog.Info("Custom item uploaded", "id", item.ID, "name", item.Name, "bytes", len(up.Data))
	return &item, nil
}

// Delete removes exactly the item with id, keeping the order of the rest
func (c *Collection) Delete(ctx context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	items, err := c.load(ctx)
	if err != nil {
		return err
	}

	kept := make([]models.UploadedItem, 0, len(items))
	for _, it := range items {
		if it.ID != id {
			kept = append(kept, it)
		}
	}
	if len(kept) == len(items) {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}

	if err := c.save(ctx, kept); err != nil {
		return err
	}
	slog.Info("Custom item deleted", "id", id)
	return nil
}

// Handoff builds the record for trying on a custom item
func (c *Collection) Handoff(ctx context.Context, id int64, mode models.Mode) (models.HandoffRecord, error) {
	item, err := c.Get(ctx, id)
	if err != nil {
		return models.HandoffRecord{}, err
	}
	return models.HandoffRecord{
		ImageRef:    item.ImageRef,
		DisplayName: item.DisplayName,
		Mode:        mode,
		IsCustom:    true,
	}, nil
}

func (c *Collection) itemName(filename string) string {
	base := filepath.Base(filename)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	name = strings.TrimSpace(c.policy.Sanitize(name))
	if name == "" || name == "." {
		return "item"
	}
	return name
}

func (c *Collection) load(ctx context.Context) ([]models.UploadedItem, error) {
	raw, err := c.kv.Get(ctx, StorageKey)
	if errors.Is(err, storage.ErrNotFound) {
		return []models.UploadedItem{}, nil
	}
	if err != nil {
		return nil, err
	}

	var items []models.UploadedItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("failed to decode uploaded items: %w", err)
	}
	if items == nil {
		items = []models.UploadedItem{}
	}
	return items, nil
}

func (c *Collection) save(ctx context.Context, items []models.UploadedItem) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode uploaded items: %w", err)
	}
	return c.kv.Set(ctx, StorageKey, string(data))
}
