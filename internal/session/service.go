package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/lehigh-university-libraries/tryon/internal/capture"
	"github.com/lehigh-university-libraries/tryon/internal/compositor"
	"github.com/lehigh-university-libraries/tryon/internal/history"
	"github.com/lehigh-university-libraries/tryon/internal/images"
	"github.com/lehigh-university-libraries/tryon/internal/models"
	"github.com/lehigh-university-libraries/tryon/internal/providers"
)

const (
	SourceRemote = "remote"
	SourceLocal  = "local"
)

// Options wires a Service. Provider, History and Camera are optional.
type Options struct {
	Canvas         compositor.Size
	Compositor     compositor.Options
	MaxUploadBytes int64
	Provider       providers.Provider
	History        *history.Store
	Fetcher        *images.Fetcher
	Camera         *capture.Adapter
}

// Service runs try-on operations against sessions in a Registry
type Service struct {
	registry   *Registry
	compositor *compositor.Compositor
	canvas     compositor.Size
	maxBytes   int64
	provider   providers.Provider
	history    *history.Store
	fetcher    *images.Fetcher
	camera     *capture.Adapter
}

func NewService(registry *Registry, opts Options) *Service {
	if opts.Canvas.W <= 0 || opts.Canvas.H <= 0 {
		opts.Canvas = compositor.Size{W: 400, H: 500}
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = images.DefaultMaxUploadBytes
	}
	if opts.Fetcher == nil {
		opts.Fetcher = images.NewFetcher()
		opts.Fetcher.MaxBytes = opts.MaxUploadBytes
	}
	return &Service{
		registry:   registry,
		compositor: compositor.New(opts.Compositor),
		canvas:     opts.Canvas,
		maxBytes:   opts.MaxUploadBytes,
		provider:   opts.Provider,
		history:    opts.History,
		fetcher:    opts.Fetcher,
		camera:     opts.Camera,
	}
}

// Canvas returns the output size of renders
func (s *Service) Canvas() compositor.Size { return s.canvas }

func (s *Service) Registry() *Registry { return s.registry }

func (s *Service) get(id string) (*Session, error) {
	sess, ok := s.registry.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return sess, nil
}

// Create starts an empty session in the given mode
func (s *Service) Create(mode models.Mode) View {
	sess := s.registry.Create(mode)
	slog.Info("Session created", "session_id", sess.ID, "mode", mode)
	return sess.View()
}

func (s *Service) Get(id string) (View, error) {
	sess, err := s.get(id)
	if err != nil {
		return View{}, err
	}
	return sess.View(), nil
}

func (s *Service) Delete(id string) error {
	if !s.registry.Delete(id) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *Service) Reset(id string) (View, error) {
	sess, err := s.get(id)
	if err != nil {
		return View{}, err
	}
	sess.Reset()
	return sess.View(), nil
}

// SetBase replaces the user photo. The upload is validated and decoded
// before the session is touched.
func (s *Service) SetBase(id string, up Upload) (View, error) {
	sess, err := s.get(id)
	if err != nil {
		return View{}, err
	}
	src, err := decodeSource(up, s.maxBytes)
	if err != nil {
		return View{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.base = src
	return sess.viewLocked(), nil
}

// SetOverlay replaces the clothing image with an uploaded file
func (s *Service) SetOverlay(id string, up Upload, itemName string) (View, error) {
	sess, err := s.get(id)
	if err != nil {
		return View{}, err
	}
	src, err := decodeSource(up, s.maxBytes)
	if err != nil {
		return View{}, err
	}
	if itemName == "" {
		itemName = up.Filename
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.overlay = src
	sess.itemName = itemName
	sess.isCustom = false
	return sess.viewLocked(), nil
}

// LoadHandoff resolves the record's image reference and installs it as the
// overlay, adopting the record's mode and display name
func (s *Service) LoadHandoff(ctx context.Context, id string, rec models.HandoffRecord) (View, error) {
	sess, err := s.get(id)
	if err != nil {
		return View{}, err
	}

	data, mimeType, err := s.fetcher.Resolve(ctx, rec.ImageRef)
	if err != nil {
		return View{}, fmt.Errorf("failed to load selected item: %w", err)
	}
	src, err := decodeSource(Upload{Filename: path.Base(rec.ImageRef), ContentType: mimeType, Data: data}, s.maxBytes)
	if err != nil {
		return View{}, err
	}
	if images.IsDataURI(rec.ImageRef) {
		src.Filename = ""
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.overlay = src
	sess.itemName = rec.DisplayName
	sess.isCustom = rec.IsCustom
	if rec.Mode != "" {
		sess.mode = rec.Mode
	}
	slog.Info("Handoff loaded", "session_id", id, "item", rec.DisplayName, "mode", sess.mode, "custom", rec.IsCustom)
	return sess.viewLocked(), nil
}

// CaptureBase snapshots one frame from the camera and installs it as the
// user photo
func (s *Service) CaptureBase(ctx context.Context, id string, c capture.Constraints) (View, error) {
	sess, err := s.get(id)
	if err != nil {
		return View{}, err
	}
	if s.camera == nil {
		return View{}, fmt.Errorf("%w: no camera configured", capture.ErrDeviceNotFound)
	}

	frame, err := s.camera.CaptureOnce(ctx, c)
	if err != nil {
		return View{}, err
	}
	data, err := images.EncodePNG(frame)
	if err != nil {
		return View{}, fmt.Errorf("failed to encode captured frame: %w", err)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.base = &source{
		Upload: Upload{Filename: "capture.png", ContentType: "image/png", Data: data},
		img:    frame,
	}
	sess.mode = models.ModeCamera
	return sess.viewLocked(), nil
}

// Adjust stores a new adjustment. It does not render.
func (s *Service) Adjust(id string, adj models.Adjustment) (View, error) {
	sess, err := s.get(id)
	if err != nil {
		return View{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.adjustment = adj
	return sess.viewLocked(), nil
}

type renderJob struct {
	base, overlay *source
	adj           models.Adjustment
	generation    uint64
	mode          models.Mode
	itemName      string
}

// begin snapshots the inputs of a render and supersedes any render in flight
func (sess *Session) begin() (renderJob, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.base == nil || sess.overlay == nil {
		return renderJob{}, fmt.Errorf("%w: please upload both images first", compositor.ErrMissingInput)
	}
	sess.generation++
	return renderJob{
		base:       sess.base,
		overlay:    sess.overlay,
		adj:        sess.adjustment,
		generation: sess.generation,
		mode:       sess.mode,
		itemName:   sess.itemName,
	}, nil
}

// commit stores a result unless a newer render started since job began
func (sess *Session) commit(job renderJob, result []byte, source string) bool {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.generation != job.generation {
		return false
	}
	sess.result = result
	sess.resultSource = source
	return true
}

// Render composites the session's images locally. The returned PNG is stored
// as the session result unless a newer render has started meanwhile.
func (s *Service) Render(id string) ([]byte, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}
	job, err := sess.begin()
	if err != nil {
		return nil, err
	}

	out, err := s.compose(job)
	if err != nil {
		return nil, err
	}
	if !sess.commit(job, out, SourceLocal) {
		slog.Debug("Render superseded", "session_id", id, "generation", job.generation)
	}
	return out, nil
}

func (s *Service) compose(job renderJob) ([]byte, error) {
	img, err := s.compositor.Compose(job.base.img, job.overlay.img, s.canvas, job.adj)
	if err != nil {
		return nil, err
	}
	out, err := images.EncodePNG(img)
	if err != nil {
		return nil, fmt.Errorf("failed to encode render: %w", err)
	}
	return out, nil
}

// Outcome is the result of a try-on request
type Outcome struct {
	Image  []byte
	Result models.TryOnResult
	Notice *models.Notice
}

// TryOn submits the session's images to the remote provider. Any provider
// failure falls back to the local compositor, so a result is always produced
// when both images are loaded.
func (s *Service) TryOn(ctx context.Context, id string) (*Outcome, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}
	job, err := sess.begin()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result := models.TryOnResult{
		SessionID: id,
		ItemName:  job.itemName,
		Mode:      string(job.mode),
	}

	var (
		out       []byte
		remoteErr error
	)
	if s.provider != nil {
		result.Provider = s.provider.Name()
		out, remoteErr = s.remote(ctx, job)
	} else {
		remoteErr = fmt.Errorf("%w: no provider configured", providers.ErrUnavailable)
	}

	notice := models.Success("✨ Virtual try-on complete!")
	result.Source = SourceRemote
	if remoteErr != nil {
		slog.Warn("Remote try-on failed, using local overlay", "session_id", id, "provider", result.Provider, "err", remoteErr)
		result.Source = SourceLocal
		result.Error = remoteErr.Error()
		notice = models.Warning("⚠️ AI try-on unavailable, showing basic overlay instead")

		out, err = s.compose(job)
		if err != nil {
			return nil, err
		}
	}

	img, _, err := images.Decode(out)
	if err == nil {
		b := img.Bounds()
		result.Width, result.Height = b.Dx(), b.Dy()
	}
	result.DurationMS = time.Since(start).Milliseconds()

	if !sess.commit(job, out, result.Source) {
		slog.Debug("Try-on superseded", "session_id", id, "generation", job.generation)
	}

	if s.history != nil {
		if err := s.history.Record(ctx, &result); err != nil {
			slog.Error("Failed to record try-on result", "session_id", id, "err", err)
		}
	}

	slog.Info("Try-on complete", "session_id", id, "source", result.Source, "duration_ms", result.DurationMS)
	return &Outcome{Image: out, Result: result, Notice: notice}, nil
}

func (s *Service) remote(ctx context.Context, job renderJob) ([]byte, error) {
	req := providers.Request{
		Clothing: providers.Image(job.overlay.Upload),
		Avatar:   (*providers.Image)(&job.base.Upload),
	}
	data, err := s.provider.TryOn(ctx, req)
	if err != nil {
		return nil, err
	}
	img, _, err := images.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: result is not an image: %v", providers.ErrRemote, err)
	}
	// re-encode so every stored result is PNG
	return images.EncodePNG(img)
}

// IsInputError reports whether err was caused by the caller's input rather
// than by the service
func IsInputError(err error) bool {
	return errors.Is(err, images.ErrInvalidFile) || errors.Is(err, compositor.ErrMissingInput)
}
