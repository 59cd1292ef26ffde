// Package capture opens camera-like devices and snapshots single frames.
//
// Only one stream is held at a time: opening a new stream closes the
// previous one, and every stream is released exactly once.
package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"log/slog"
	"sync"
)

var (
	ErrPermissionDenied         = errors.New("camera permission denied")
	ErrDeviceNotFound           = errors.New("no camera found")
	ErrDeviceBusy               = errors.New("camera is in use")
	ErrConstraintsUnsatisfiable = errors.New("camera constraints not supported")
	ErrStreamClosed             = errors.New("stream is closed")
)

// Remediation returns the user-facing advice for a capture failure
func Remediation(err error) string {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return "Permission denied. Please allow camera access and try again."
	case errors.Is(err, ErrDeviceNotFound):
		return "No camera found. Please connect a camera and try again."
	case errors.Is(err, ErrDeviceBusy):
		return "Camera is being used by another application. Please close other camera apps."
	case errors.Is(err, ErrConstraintsUnsatisfiable):
		return "Camera access failed even with basic settings. Please check your camera settings."
	case err == nil:
		return ""
	default:
		return "Camera access failed: " + err.Error()
	}
}

// Constraints describe the preferred stream. The zero value accepts any camera.
type Constraints struct {
	Width  int    `json:"width,omitempty"`  // minimum width, 0 = any
	Height int    `json:"height,omitempty"` // minimum height, 0 = any
	Facing string `json:"facing,omitempty"` // "user", "environment" or "" for any
}

// DefaultConstraints mirror the preferred front-camera VGA stream
func DefaultConstraints() Constraints {
	return Constraints{Width: 640, Height: 480, Facing: "user"}
}

// Minimal is the constraint set used for the single retry
func Minimal() Constraints {
	return Constraints{}
}

// IsMinimal reports whether c places no requirement on the device
func (c Constraints) IsMinimal() bool {
	return c == Constraints{}
}

// Satisfied reports whether a device of the given resolution and facing meets c
func (c Constraints) Satisfied(w, h int, facing string) bool {
	if c.Width > 0 && w < c.Width {
		return false
	}
	if c.Height > 0 && h < c.Height {
		return false
	}
	if c.Facing != "" && facing != "" && c.Facing != facing {
		return false
	}
	return true
}

// Source is an open device handle producing frames
type Source interface {
	Frame(ctx context.Context) (image.Image, error)
	Resolution() (width, height int)
	Close() error
}

// Device opens sources
type Device interface {
	Name() string
	Open(ctx context.Context, c Constraints) (Source, error)
}

// Stream is an open, exclusively owned source
type Stream struct {
	src    Source
	device string

	mu       sync.Mutex
	closed   bool
	closeErr error
}

// Resolution returns the negotiated frame size
func (s *Stream) Resolution() (int, int) {
	return s.src.Resolution()
}

// Capture snapshots the current frame at the stream's native resolution.
// The returned image is a private copy.
func (s *Stream) Capture(ctx context.Context) (*image.RGBA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStreamClosed
	}

	frame, err := s.src.Frame(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to capture frame: %w", err)
	}

	b := frame.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), frame, b.Min, draw.Src)
	return out, nil
}

// Close releases the underlying device. Later calls return the first result.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return s.closeErr
	}
	s.closed = true
	s.closeErr = s.src.Close()
	slog.Debug("Capture stream closed", "device", s.device)
	return s.closeErr
}

// Closed reports whether Close has been called
func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Adapter owns at most one open stream on a device
type Adapter struct {
	dev Device

	mu      sync.Mutex
	current *Stream
}

// NewAdapter creates an adapter for dev
func NewAdapter(dev Device) *Adapter {
	return &Adapter{dev: dev}
}

// Open closes any stream the adapter holds and opens a new one. If the device
// cannot satisfy c, it retries once with Minimal constraints.
func (a *Adapter) Open(ctx context.Context, c Constraints) (*Stream, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.current != nil {
		if err := a.current.Close(); err != nil {
			slog.Warn("Failed to close previous capture stream", "device", a.dev.Name(), "err", err)
		}
		a.current = nil
	}

	src, err := a.dev.Open(ctx, c)
	if errors.Is(err, ErrConstraintsUnsatisfiable) && !c.IsMinimal() {
		slog.Info("Retrying camera with basic constraints", "device", a.dev.Name(), "requested", c)
		src, err = a.dev.Open(ctx, Minimal())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", a.dev.Name(), err)
	}

	w, h := src.Resolution()
	slog.Info("Capture stream opened", "device", a.dev.Name(), "width", w, "height", h)

	a.current = &Stream{src: src, device: a.dev.Name()}
	return a.current, nil
}

// Close releases the held stream, if any
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == nil {
		return nil
	}
	err := a.current.Close()
	a.current = nil
	return err
}

// Active reports whether the adapter holds an open stream
func (a *Adapter) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current != nil && !a.current.Closed()
}

// CaptureOnce opens a stream, snapshots one frame and closes the stream on
// every exit path.
func (a *Adapter) CaptureOnce(ctx context.Context, c Constraints) (*image.RGBA, error) {
	s, err := a.Open(ctx, c)
	if err != nil {
		return nil, err
	}
	defer a.release(s)
	return s.Capture(ctx)
}

func (a *Adapter) release(s *Stream) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := s.Close(); err != nil {
		slog.Warn("Failed to close capture stream", "device", a.dev.Name(), "err", err)
	}
	if a.current == s {
		a.current = nil
	}
}
