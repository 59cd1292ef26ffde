package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/lehigh-university-libraries/tryon/internal/capture"
	"github.com/lehigh-university-libraries/tryon/internal/compositor"
	"github.com/lehigh-university-libraries/tryon/internal/history"
	"github.com/lehigh-university-libraries/tryon/internal/images"
	"github.com/lehigh-university-libraries/tryon/internal/models"
	"github.com/lehigh-university-libraries/tryon/internal/providers"
	"github.com/lehigh-university-libraries/tryon/internal/storage"
)

type fakeProvider struct {
	out   []byte
	err   error
	calls int
	last  providers.Request
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) TryOn(_ context.Context, req providers.Request) ([]byte, error) {
	f.calls++
	f.last = req
	return f.out, f.err
}

func solidPNG(t *testing.T, w, h int, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	data, err := images.EncodePNG(img)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func pngUpload(t *testing.T, name string, w, h int, c color.RGBA) Upload {
	return Upload{Filename: name, ContentType: "image/png", Data: solidPNG(t, w, h, c)}
}

var (
	white = color.RGBA{255, 255, 255, 255}
	red   = color.RGBA{255, 0, 0, 255}
)

func newService(t *testing.T, p providers.Provider) (*Service, *history.Store) {
	t.Helper()
	db, err := storage.OpenMemory()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	hist, err := history.New(context.Background(), db)
	if err != nil {
		t.Fatal(err)
	}
	svc := NewService(NewRegistry(), Options{
		Canvas:     compositor.Size{W: 40, H: 50},
		Compositor: compositor.DefaultOptions(),
		Provider:   p,
		History:    hist,
	})
	return svc, hist
}

func loaded(t *testing.T, svc *Service) string {
	t.Helper()
	v := svc.Create(models.ModeUpload)
	if _, err := svc.SetBase(v.ID, pngUpload(t, "me.png", 80, 100, white)); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.SetOverlay(v.ID, pngUpload(t, "shirt.png", 20, 20, red), "Red Shirt"); err != nil {
		t.Fatal(err)
	}
	return v.ID
}

func TestFailedUploadLeavesStateUntouched(t *testing.T) {
	svc, _ := newService(t, nil)
	id := loaded(t, svc)
	if _, err := svc.Adjust(id, models.Adjustment{Scale: 150, OffsetX: 5}); err != nil {
		t.Fatal(err)
	}
	before, _ := svc.Get(id)

	tests := []struct {
		name string
		up   Upload
	}{
		{name: "not an image", up: Upload{Filename: "a.txt", ContentType: "text/plain", Data: []byte("hi")}},
		{name: "corrupt image", up: Upload{Filename: "a.png", ContentType: "image/png", Data: []byte("hi")}},
		{name: "too large", up: Upload{Filename: "a.png", ContentType: "image/png", Data: make([]byte, images.DefaultMaxUploadBytes+1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.SetBase(id, tt.up); !errors.Is(err, images.ErrInvalidFile) {
				t.Errorf("Expected ErrInvalidFile, got %v", err)
			}
			if _, err := svc.SetOverlay(id, tt.up, ""); !errors.Is(err, images.ErrInvalidFile) {
				t.Errorf("Expected ErrInvalidFile, got %v", err)
			}
			after, _ := svc.Get(id)
			if *after.Base != *before.Base || *after.Overlay != *before.Overlay || after.Adjustment != before.Adjustment {
				t.Errorf("Expected state unchanged, before %+v after %+v", before, after)
			}
		})
	}
}

func TestRenderMissingInput(t *testing.T) {
	svc, _ := newService(t, nil)
	v := svc.Create(models.ModeCamera)
	if _, err := svc.SetBase(v.ID, pngUpload(t, "me.png", 8, 10, white)); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Render(v.ID); !errors.Is(err, compositor.ErrMissingInput) {
		t.Errorf("Expected ErrMissingInput, got %v", err)
	}
	if _, err := svc.TryOn(context.Background(), v.ID); !errors.Is(err, compositor.ErrMissingInput) {
		t.Errorf("Expected ErrMissingInput from TryOn, got %v", err)
	}
	if got, _ := svc.Get(v.ID); got.HasResult {
		t.Error("Expected no result after failed render")
	}
}

func TestRenderDoesNotAccumulate(t *testing.T) {
	svc, _ := newService(t, nil)
	id := loaded(t, svc)

	first, err := svc.Render(id)
	if err != nil {
		t.Fatal(err)
	}
	for _, adj := range []models.Adjustment{{Scale: 150, OffsetX: 10}, {Scale: 50, OffsetY: -20}, models.DefaultAdjustment()} {
		if _, err := svc.Adjust(id, adj); err != nil {
			t.Fatal(err)
		}
		if _, err := svc.Render(id); err != nil {
			t.Fatal(err)
		}
	}
	last, err := svc.Render(id)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, last) {
		t.Error("Expected identical output for identical adjustment after several re-renders")
	}
}

func TestSupersededRenderIsDiscarded(t *testing.T) {
	svc, _ := newService(t, nil)
	id := loaded(t, svc)
	sess, _ := svc.registry.Get(id)

	older, err := sess.begin()
	if err != nil {
		t.Fatal(err)
	}
	newer, err := sess.begin()
	if err != nil {
		t.Fatal(err)
	}

	if !sess.commit(newer, []byte("newer"), SourceLocal) {
		t.Error("Expected newest render to commit")
	}
	if sess.commit(older, []byte("older"), SourceLocal) {
		t.Error("Expected superseded render to be discarded")
	}
	got, _, _ := sess.Result()
	if string(got) != "newer" {
		t.Errorf("Expected newer result kept, got %q", got)
	}
}

func TestTryOnRemote(t *testing.T) {
	p := &fakeProvider{out: solidPNG(t, 30, 40, red)}
	svc, hist := newService(t, p)
	id := loaded(t, svc)

	out, err := svc.TryOn(context.Background(), id)
	if err != nil {
		t.Fatalf("TryOn failed: %v", err)
	}
	if out.Result.Source != SourceRemote || out.Result.Width != 30 {
		t.Errorf("Unexpected result %+v", out.Result)
	}
	if p.last.Avatar == nil || p.last.Clothing.Filename != "shirt.png" {
		t.Errorf("Expected avatar and clothing sent, got %+v", p.last)
	}

	rows, err := hist.List(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Source != SourceRemote || rows[0].ItemName != "Red Shirt" {
		t.Errorf("Unexpected history %+v", rows)
	}
}

func TestTryOnFallsBackToLocal(t *testing.T) {
	tests := []struct {
		name     string
		provider providers.Provider
	}{
		{name: "unavailable", provider: &fakeProvider{err: providers.ErrUnavailable}},
		{name: "remote error", provider: &fakeProvider{err: providers.ErrRemote}},
		{name: "garbage result", provider: &fakeProvider{out: []byte("not an image")}},
		{name: "no provider", provider: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, hist := newService(t, tt.provider)
			id := loaded(t, svc)

			out, err := svc.TryOn(context.Background(), id)
			if err != nil {
				t.Fatalf("Expected fallback, got error %v", err)
			}
			if out.Result.Source != SourceLocal || out.Result.Error == "" {
				t.Errorf("Expected local result with error noted, got %+v", out.Result)
			}
			if out.Result.Width != 40 || out.Result.Height != 50 {
				t.Errorf("Expected canvas-sized local result, got %dx%d", out.Result.Width, out.Result.Height)
			}
			if out.Notice == nil || out.Notice.Level != "warning" {
				t.Errorf("Expected warning notice, got %+v", out.Notice)
			}
			_, source, ok := func() ([]byte, string, bool) {
				sess, _ := svc.registry.Get(id)
				return sess.Result()
			}()
			if !ok || source != SourceLocal {
				t.Errorf("Expected local result stored, got %v %s", ok, source)
			}
			rows, _ := hist.List(context.Background(), 0)
			if len(rows) != 1 {
				t.Errorf("Expected 1 history row, got %d", len(rows))
			}
		})
	}
}

func TestLoadHandoff(t *testing.T) {
	svc, _ := newService(t, nil)
	v := svc.Create(models.ModeUpload)
	ctx := context.Background()

	rec := models.HandoffRecord{
		ImageRef:    images.EncodeDataURI("image/png", solidPNG(t, 10, 10, red)),
		DisplayName: "Custom coat",
		Mode:        models.ModeCamera,
		IsCustom:    true,
	}
	got, err := svc.LoadHandoff(ctx, v.ID, rec)
	if err != nil {
		t.Fatalf("LoadHandoff failed: %v", err)
	}
	if got.Overlay == nil || got.ItemName != "Custom coat" || !got.IsCustom || got.Mode != models.ModeCamera {
		t.Errorf("Unexpected view %+v", got)
	}

	bad := models.HandoffRecord{ImageRef: filepath.Join(t.TempDir(), "missing.png"), DisplayName: "Gone"}
	if _, err := svc.LoadHandoff(ctx, v.ID, bad); err == nil {
		t.Fatal("Expected error for unresolvable image")
	}
	after, _ := svc.Get(v.ID)
	if after.ItemName != "Custom coat" {
		t.Errorf("Expected failed handoff to leave state, got %+v", after)
	}
}

func TestLoadHandoffOutsideAssets(t *testing.T) {
	root := t.TempDir()
	assets := filepath.Join(root, "assets")
	if err := os.MkdirAll(assets, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "private.png"), solidPNG(t, 10, 10, red), 0644); err != nil {
		t.Fatal(err)
	}

	fetcher := images.NewFetcher()
	fetcher.BaseDir = assets
	fetcher.AllowURL = func(string) bool { return false }
	svc := NewService(NewRegistry(), Options{Canvas: compositor.Size{W: 40, H: 50}, Fetcher: fetcher})
	v := svc.Create(models.ModeUpload)

	for _, ref := range []string{"../private.png", filepath.Join(root, "private.png"), "http://169.254.169.254/latest"} {
		_, err := svc.LoadHandoff(context.Background(), v.ID, models.HandoffRecord{ImageRef: ref, DisplayName: "Leak"})
		if !errors.Is(err, images.ErrRefNotAllowed) {
			t.Errorf("Expected ErrRefNotAllowed for %s, got %v", ref, err)
		}
	}
	after, _ := svc.Get(v.ID)
	if after.Overlay != nil || after.ItemName != "" {
		t.Errorf("Expected session untouched, got %+v", after)
	}
}

func TestIsInputError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "invalid file", err: fmt.Errorf("upload: %w", images.ErrInvalidFile), want: true},
		{name: "missing input", err: compositor.ErrMissingInput, want: true},
		{name: "not found", err: ErrNotFound},
		{name: "provider", err: providers.ErrUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsInputError(tt.err); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestReset(t *testing.T) {
	svc, _ := newService(t, nil)
	id := loaded(t, svc)
	if _, err := svc.Adjust(id, models.Adjustment{Scale: 120, OffsetX: 3, OffsetY: 4}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Render(id); err != nil {
		t.Fatal(err)
	}

	v, err := svc.Reset(id)
	if err != nil {
		t.Fatal(err)
	}
	if v.Base != nil || v.Overlay != nil || v.HasResult || v.Adjustment != models.DefaultAdjustment() {
		t.Errorf("Expected cleared session, got %+v", v)
	}
	if v.Mode != models.ModeUpload {
		t.Errorf("Expected mode kept, got %s", v.Mode)
	}
}

func TestCaptureBase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cam.png")
	if err := os.WriteFile(path, solidPNG(t, 64, 48, white), 0644); err != nil {
		t.Fatal(err)
	}
	cam := capture.NewAdapter(capture.NewFileDevice(path))
	svc := NewService(NewRegistry(), Options{Camera: cam})
	v := svc.Create(models.ModeUpload)

	got, err := svc.CaptureBase(context.Background(), v.ID, capture.DefaultConstraints())
	if err != nil {
		t.Fatalf("CaptureBase failed: %v", err)
	}
	if got.Base == nil || got.Base.Width != 64 || got.Mode != models.ModeCamera {
		t.Errorf("Unexpected view %+v", got)
	}
	if cam.Active() {
		t.Error("Expected camera released after capture")
	}

	noCam := NewService(NewRegistry(), Options{})
	v2 := noCam.Create(models.ModeCamera)
	if _, err := noCam.CaptureBase(context.Background(), v2.ID, capture.DefaultConstraints()); !errors.Is(err, capture.ErrDeviceNotFound) {
		t.Errorf("Expected ErrDeviceNotFound, got %v", err)
	}
}

func TestUnknownSession(t *testing.T) {
	svc, _ := newService(t, nil)
	if _, err := svc.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if err := svc.Delete("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
