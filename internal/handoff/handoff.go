// Package handoff passes a selected clothing image from one page to another
// through the shared store. A record is published immediately before
// navigating away and consumed exactly once by the destination.
package handoff

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lehigh-university-libraries/tryon/internal/models"
	"github.com/lehigh-university-libraries/tryon/internal/storage"
)

// Keys names the store keys a record is spread across
type Keys struct {
	ImageRef    string
	DisplayName string
	Mode        string
	IsCustom    string
}

func (k Keys) all() []string {
	keys := []string{k.ImageRef, k.DisplayName}
	if k.Mode != "" {
		keys = append(keys, k.Mode)
	}
	if k.IsCustom != "" {
		keys = append(keys, k.IsCustom)
	}
	return keys
}

// TryOnKeys carry a selection from the catalog to the try-on flow
var TryOnKeys = Keys{
	ImageRef:    "selectedFabric",
	DisplayName: "selectedFabricName",
	Mode:        "tryOnMode",
	IsCustom:    "isCustomItem",
}

// CatalogKeys carry a selection from the try-on flow back to the catalog
var CatalogKeys = Keys{
	ImageRef:    "catalogFabric",
	DisplayName: "catalogFabricName",
}

// Store publishes and consumes handoff records
type Store struct {
	kv   storage.KV
	keys Keys
}

// New creates a handoff store over kv using keys
func New(kv storage.KV, keys Keys) *Store {
	return &Store{kv: kv, keys: keys}
}

// Publish replaces any pending record with rec
func (s *Store) Publish(ctx context.Context, rec models.HandoffRecord) error {
	if rec.ImageRef == "" || rec.DisplayName == "" {
		return fmt.Errorf("handoff record requires an image reference and a display name")
	}

	set := map[string]string{
		s.keys.ImageRef:    rec.ImageRef,
		s.keys.DisplayName: rec.DisplayName,
	}
	var del []string
	if s.keys.Mode != "" {
		if rec.Mode == "" {
			rec.Mode = models.ModeCamera
		}
		set[s.keys.Mode] = string(rec.Mode)
	}
	if s.keys.IsCustom != "" {
		if rec.IsCustom {
			set[s.keys.IsCustom] = "true"
		} else {
			del = append(del, s.keys.IsCustom)
		}
	}

	if err := s.kv.SetMany(ctx, set, del); err != nil {
		return fmt.Errorf("failed to publish handoff: %w", err)
	}
	slog.Debug("Handoff published", "name", rec.DisplayName, "mode", rec.Mode, "custom", rec.IsCustom)
	return nil
}

// Consume removes the pending record and returns it. It reports false when
// there is none, including when a partial write left the image reference or
// display name missing; every key is cleared either way.
func (s *Store) Consume(ctx context.Context) (*models.HandoffRecord, bool, error) {
	values, err := s.kv.TakeMany(ctx, s.keys.all())
	if err != nil {
		return nil, false, fmt.Errorf("failed to consume handoff: %w", err)
	}

	ref, name := values[s.keys.ImageRef], values[s.keys.DisplayName]
	if ref == "" || name == "" {
		if len(values) > 0 {
			slog.Warn("Discarding partial handoff record", "keys", len(values))
		}
		return nil, false, nil
	}

	rec := &models.HandoffRecord{
		ImageRef:    ref,
		DisplayName: name,
		IsCustom:    values[s.keys.IsCustom] == "true",
	}
	if s.keys.Mode != "" {
		mode, err := models.ParseMode(values[s.keys.Mode])
		if err != nil {
			mode = models.ModeUpload
		}
		rec.Mode = mode
	}
	return rec, true, nil
}
