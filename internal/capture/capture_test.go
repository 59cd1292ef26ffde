package capture

import (
	"context"
	"errors"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/lehigh-university-libraries/tryon/internal/images"
)

type fakeDevice struct {
	mu       sync.Mutex
	w, h     int
	openErr  error
	frameErr error
	opens    []Constraints
	open     int
	closes   int
}

func (d *fakeDevice) Name() string { return "fake" }

func (d *fakeDevice) Open(_ context.Context, c Constraints) (Source, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opens = append(d.opens, c)
	if d.openErr != nil {
		return nil, d.openErr
	}
	if !c.Satisfied(d.w, d.h, "") {
		return nil, ErrConstraintsUnsatisfiable
	}
	d.open++
	return &fakeSource{dev: d}, nil
}

type fakeSource struct{ dev *fakeDevice }

func (s *fakeSource) Frame(context.Context) (image.Image, error) {
	if s.dev.frameErr != nil {
		return nil, s.dev.frameErr
	}
	img := image.NewRGBA(image.Rect(0, 0, s.dev.w, s.dev.h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	return img, nil
}

func (s *fakeSource) Resolution() (int, int) { return s.dev.w, s.dev.h }

func (s *fakeSource) Close() error {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	s.dev.open--
	s.dev.closes++
	return nil
}

func TestCaptureOnce(t *testing.T) {
	dev := &fakeDevice{w: 640, h: 480}
	a := NewAdapter(dev)

	img, err := a.CaptureOnce(context.Background(), DefaultConstraints())
	if err != nil {
		t.Fatalf("CaptureOnce failed: %v", err)
	}
	if img.Bounds().Dx() != 640 || img.Bounds().Dy() != 480 {
		t.Errorf("Expected native 640x480 frame, got %v", img.Bounds())
	}
	if dev.open != 0 || dev.closes != 1 {
		t.Errorf("Expected stream released once, open=%d closes=%d", dev.open, dev.closes)
	}
	if a.Active() {
		t.Error("Expected adapter to hold no stream")
	}
}

func TestCaptureOnceReleasesOnFrameError(t *testing.T) {
	dev := &fakeDevice{w: 640, h: 480, frameErr: errors.New("boom")}
	a := NewAdapter(dev)

	if _, err := a.CaptureOnce(context.Background(), DefaultConstraints()); err == nil {
		t.Fatal("Expected frame error")
	}
	if dev.open != 0 {
		t.Errorf("Expected stream released after failure, %d still open", dev.open)
	}
}

func TestRetryWithMinimalConstraints(t *testing.T) {
	dev := &fakeDevice{w: 320, h: 240}
	a := NewAdapter(dev)

	s, err := a.Open(context.Background(), DefaultConstraints())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	if len(dev.opens) != 2 {
		t.Fatalf("Expected 2 open attempts, got %d", len(dev.opens))
	}
	if !dev.opens[1].IsMinimal() {
		t.Errorf("Expected retry with minimal constraints, got %+v", dev.opens[1])
	}
	if w, h := s.Resolution(); w != 320 || h != 240 {
		t.Errorf("Expected 320x240, got %dx%d", w, h)
	}
}

func TestNoRetryForOtherErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "permission", err: ErrPermissionDenied},
		{name: "not found", err: ErrDeviceNotFound},
		{name: "busy", err: ErrDeviceBusy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := &fakeDevice{openErr: tt.err}
			_, err := NewAdapter(dev).Open(context.Background(), DefaultConstraints())
			if !errors.Is(err, tt.err) {
				t.Errorf("Expected %v, got %v", tt.err, err)
			}
			if len(dev.opens) != 1 {
				t.Errorf("Expected a single attempt, got %d", len(dev.opens))
			}
		})
	}
}

func TestOpenClosesPreviousStream(t *testing.T) {
	dev := &fakeDevice{w: 640, h: 480}
	a := NewAdapter(dev)
	ctx := context.Background()

	first, err := a.Open(ctx, DefaultConstraints())
	if err != nil {
		t.Fatal(err)
	}
	second, err := a.Open(ctx, DefaultConstraints())
	if err != nil {
		t.Fatal(err)
	}

	if !first.Closed() {
		t.Error("Expected first stream closed when a new one opens")
	}
	if dev.open != 1 {
		t.Errorf("Expected exactly one open stream, got %d", dev.open)
	}
	if _, err := first.Capture(ctx); !errors.Is(err, ErrStreamClosed) {
		t.Errorf("Expected ErrStreamClosed, got %v", err)
	}

	if err := a.Close(); err != nil {
		t.Fatal(err)
	}
	if err := second.Close(); err != nil {
		t.Errorf("Expected repeated close to be a no-op, got %v", err)
	}
	if dev.closes != 2 {
		t.Errorf("Expected 2 releases, got %d", dev.closes)
	}
}

func TestRemediation(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{err: ErrPermissionDenied, want: "Permission denied. Please allow camera access and try again."},
		{err: ErrDeviceNotFound, want: "No camera found. Please connect a camera and try again."},
		{err: ErrDeviceBusy, want: "Camera is being used by another application. Please close other camera apps."},
		{err: nil, want: ""},
	}
	for _, tt := range tests {
		if got := Remediation(tt.err); got != tt.want {
			t.Errorf("Remediation(%v): expected %q, got %q", tt.err, tt.want, got)
		}
	}
}

func TestFileDevice(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "frame.png")
	data, err := images.EncodePNG(image.NewRGBA(image.Rect(0, 0, 64, 48)))
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	dev, err := FromSpec("file:" + path)
	if err != nil {
		t.Fatal(err)
	}
	a := NewAdapter(dev)
	ctx := context.Background()

	// 64x48 cannot meet 640x480, so the adapter falls back to any size
	img, err := a.CaptureOnce(ctx, DefaultConstraints())
	if err != nil {
		t.Fatalf("CaptureOnce failed: %v", err)
	}
	if img.Bounds().Dx() != 64 {
		t.Errorf("Expected width 64, got %d", img.Bounds().Dx())
	}

	// held by another stream
	s, err := dev.Open(ctx, Minimal())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := dev.Open(ctx, Minimal()); !errors.Is(err, ErrDeviceBusy) {
		t.Errorf("Expected ErrDeviceBusy, got %v", err)
	}
	s.Close()

	missing := NewFileDevice(filepath.Join(dir, "nope.png"))
	if _, err := missing.Open(ctx, Minimal()); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Expected ErrDeviceNotFound, got %v", err)
	}
}

func TestSnapshotDeviceStatusMapping(t *testing.T) {
	frame, err := images.EncodePNG(image.NewRGBA(image.Rect(0, 0, 8, 8)))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		status int
		want   error
	}{
		{status: http.StatusOK, want: nil},
		{status: http.StatusForbidden, want: ErrPermissionDenied},
		{status: http.StatusNotFound, want: ErrDeviceNotFound},
		{status: http.StatusServiceUnavailable, want: ErrDeviceBusy},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				if tt.status == http.StatusOK {
					_, _ = w.Write(frame)
				}
			}))
			defer srv.Close()

			_, err := NewAdapter(NewSnapshotDevice(srv.URL)).CaptureOnce(context.Background(), Minimal())
			if tt.want == nil {
				if err != nil {
					t.Errorf("Expected success, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestFromSpec(t *testing.T) {
	if _, err := FromSpec(""); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Expected ErrDeviceNotFound for empty spec, got %v", err)
	}
	if _, err := FromSpec("v4l2:/dev/video0"); err == nil {
		t.Error("Expected error for unsupported spec")
	}
	if d, err := FromSpec("http://cam.local/snap.jpg"); err != nil || d.Name() != "http://cam.local/snap.jpg" {
		t.Errorf("Unexpected snapshot device %v, %v", d, err)
	}
}
