package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/lehigh-university-libraries/tryon/internal/images"
)

// FromSpec builds a device from a config string: "file:<path>" or an
// http(s) snapshot URL.
func FromSpec(spec string) (Device, error) {
	spec = strings.TrimSpace(spec)
	switch {
	case spec == "":
		return nil, fmt.Errorf("%w: no camera configured", ErrDeviceNotFound)
	case strings.HasPrefix(spec, "file:"):
		return NewFileDevice(strings.TrimPrefix(spec, "file:")), nil
	case strings.HasPrefix(spec, "http://"), strings.HasPrefix(spec, "https://"):
		return NewSnapshotDevice(spec), nil
	default:
		return nil, fmt.Errorf("unsupported camera spec %q", spec)
	}
}

// FileDevice treats a still image on disk as a camera. It can be held by one
// stream at a time.
type FileDevice struct {
	Path   string
	Facing string

	mu    sync.Mutex
	inUse bool
}

func NewFileDevice(path string) *FileDevice {
	return &FileDevice{Path: path}
}

func (d *FileDevice) Name() string { return "file:" + d.Path }

func (d *FileDevice) Open(_ context.Context, c Constraints) (Source, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.inUse {
		return nil, ErrDeviceBusy
	}

	data, err := os.ReadFile(d.Path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, d.Path)
	case errors.Is(err, fs.ErrPermission):
		return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, d.Path)
	case err != nil:
		return nil, err
	}

	img, _, err := images.Decode(data)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	if !c.Satisfied(b.Dx(), b.Dy(), d.Facing) {
		return nil, fmt.Errorf("%w: %dx%d device for %+v", ErrConstraintsUnsatisfiable, b.Dx(), b.Dy(), c)
	}

	d.inUse = true
	return &fileSource{dev: d, img: img}, nil
}

type fileSource struct {
	dev *FileDevice
	img image.Image
}

func (s *fileSource) Frame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.img, nil
}

func (s *fileSource) Resolution() (int, int) {
	b := s.img.Bounds()
	return b.Dx(), b.Dy()
}

func (s *fileSource) Close() error {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	s.dev.inUse = false
	return nil
}

// SnapshotDevice reads JPEG/PNG snapshots from an IP camera URL
type SnapshotDevice struct {
	URL        string
	Facing     string
	HTTPClient *http.Client
}

func NewSnapshotDevice(url string) *SnapshotDevice {
	return &SnapshotDevice{
		URL: url,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (d *SnapshotDevice) Name() string { return d.URL }

func (d *SnapshotDevice) Open(ctx context.Context, c Constraints) (Source, error) {
	img, err := d.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	if !c.Satisfied(b.Dx(), b.Dy(), d.Facing) {
		return nil, fmt.Errorf("%w: %dx%d device for %+v", ErrConstraintsUnsatisfiable, b.Dx(), b.Dy(), c)
	}
	return &snapshotSource{dev: d, w: b.Dx(), h: b.Dy()}, nil
}

func (d *SnapshotDevice) snapshot(ctx context.Context) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := d.HTTPClient.Do(req)
	if err != nil {
		if errors.Is(err, syscall.ECONNREFUSED) {
			return nil, fmt.Errorf("%w: %v", ErrDeviceNotFound, err)
		}
		return nil, fmt.Errorf("failed to fetch snapshot: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, fmt.Errorf("%w: HTTP %d", ErrPermissionDenied, resp.StatusCode)
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: HTTP %d", ErrDeviceNotFound, resp.StatusCode)
	case http.StatusConflict, http.StatusLocked, http.StatusServiceUnavailable:
		return nil, fmt.Errorf("%w: HTTP %d", ErrDeviceBusy, resp.StatusCode)
	default:
		return nil, fmt.Errorf("snapshot returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, images.DefaultMaxUploadBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	img, _, err := images.Decode(data)
	if err != nil {
		return nil, err
	}
	return img, nil
}

type snapshotSource struct {
	dev  *SnapshotDevice
	w, h int
}

func (s *snapshotSource) Frame(ctx context.Context) (image.Image, error) {
	return s.dev.snapshot(ctx)
}

func (s *snapshotSource) Resolution() (int, int) { return s.w, s.h }

func (s *snapshotSource) Close() error { return nil }
