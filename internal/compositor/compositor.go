// Package compositor renders a clothing overlay onto a user photo.
//
// The base photo is scaled to cover the canvas, then the overlay is scaled
// (aspect-locked) and multiply-blended on top at a fixed opacity. Every call
// renders into a fresh buffer from the original source images, so repeated
// renders with new adjustments never accumulate.
package compositor

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"

	"github.com/lehigh-university-libraries/tryon/internal/models"
)

// ErrMissingInput is returned when the base or overlay image is absent
var ErrMissingInput = errors.New("missing input image")

const (
	DefaultOverlayWidthRatio = 0.6
	DefaultOverlayTopRatio   = 0.3
	DefaultOpacity           = 0.8
)

// Options are the presentation constants of the overlay
type Options struct {
	OverlayWidthRatio float64 // overlay width as a fraction of canvas width at scale 100
	OverlayTopRatio   float64 // overlay top edge as a fraction of canvas height
	Opacity           float64 // global alpha of the multiply blend
}

// DefaultOptions returns the constants used by the original try-on page
func DefaultOptions() Options {
	return Options{
		OverlayWidthRatio: DefaultOverlayWidthRatio,
		OverlayTopRatio:   DefaultOverlayTopRatio,
		Opacity:           DefaultOpacity,
	}
}

// Size is a canvas size in pixels
type Size struct {
	W int `json:"width"`
	H int `json:"height"`
}

// Rect is a placement rectangle in canvas coordinates, before pixel rounding
type Rect struct {
	X, Y, W, H float64
}

func (r Rect) pixels() image.Rectangle {
	return image.Rect(
		int(math.Round(r.X)),
		int(math.Round(r.Y)),
		int(math.Round(r.X+r.W)),
		int(math.Round(r.Y+r.H)),
	)
}

// Compositor composes images with a fixed set of options
type Compositor struct {
	opts Options
}

// New creates a compositor. Zero-valued options fall back to the defaults.
func New(opts Options) *Compositor {
	d := DefaultOptions()
	if opts.OverlayWidthRatio <= 0 {
		opts.OverlayWidthRatio = d.OverlayWidthRatio
	}
	if opts.OverlayTopRatio < 0 {
		opts.OverlayTopRatio = d.OverlayTopRatio
	}
	if opts.Opacity <= 0 || opts.Opacity > 1 {
		opts.Opacity = d.Opacity
	}
	return &Compositor{opts: opts}
}

// Options returns the options the compositor was built with
func (c *Compositor) Options() Options {
	return c.opts
}

// Compose is shorthand for New(DefaultOptions()).Compose
func Compose(base, overlay image.Image, canvas Size, adj models.Adjustment) (*image.RGBA, error) {
	return New(DefaultOptions()).Compose(base, overlay, canvas, adj)
}

// Compose renders base and overlay into a new canvas-sized image.
// Neither input is modified.
func (c *Compositor) Compose(base, overlay image.Image, canvas Size, adj models.Adjustment) (*image.RGBA, error) {
	if base == nil || overlay == nil {
		return nil, ErrMissingInput
	}
	if canvas.W <= 0 || canvas.H <= 0 {
		return nil, fmt.Errorf("invalid canvas size %dx%d", canvas.W, canvas.H)
	}
	bb := base.Bounds()
	if bb.Empty() {
		return nil, fmt.Errorf("%w: base image is empty", ErrMissingInput)
	}

	out := image.NewRGBA(image.Rect(0, 0, canvas.W, canvas.H))

	fit := Fit(Size{bb.Dx(), bb.Dy()}, canvas)
	xdraw.ApproxBiLinear.Scale(out, fit.pixels(), base, bb, draw.Src, nil)

	ob := overlay.Bounds()
	if ob.Empty() {
		return out, nil
	}
	place := c.Placement(Size{ob.Dx(), ob.Dy()}, canvas, adj)
	dr := place.pixels()
	if dr.Dx() < 1 || dr.Dy() < 1 {
		// degenerate scale, nothing to draw
		return out, nil
	}
	visible := dr.Intersect(out.Bounds())
	if visible.Empty() {
		return out, nil
	}

	// Scale only the visible part of the overlay into its own layer.
	layer := image.NewRGBA(visible)
	xdraw.ApproxBiLinear.Scale(layer, dr, overlay, ob, draw.Src, nil)

	multiply(out, layer, visible, c.opts.Opacity)
	return out, nil
}

// Fit scales a source of size src to cover canvas, preserving aspect ratio.
// A source relatively wider than the canvas fills the canvas height and is
// centered horizontally, so its sides fall off the canvas; a taller one fills
// the width and is centered vertically.
func Fit(src, canvas Size) Rect {
	if src.W <= 0 || src.H <= 0 {
		return Rect{}
	}
	srcAspect := float64(src.W) / float64(src.H)
	canvasAspect := float64(canvas.W) / float64(canvas.H)

	if srcAspect > canvasAspect {
		h := float64(canvas.H)
		w := h * srcAspect
		return Rect{X: (float64(canvas.W) - w) / 2, Y: 0, W: w, H: h}
	}
	w := float64(canvas.W)
	h := w / srcAspect
	return Rect{X: 0, Y: (float64(canvas.H) - h) / 2, W: w, H: h}
}

// Placement computes where the overlay lands on the canvas for an adjustment
func (c *Compositor) Placement(overlay, canvas Size, adj models.Adjustment) Rect {
	w := float64(canvas.W) * c.opts.OverlayWidthRatio * (adj.Scale / 100)
	if w <= 0 || overlay.W <= 0 {
		return Rect{X: float64(canvas.W) / 2, Y: float64(canvas.H) * c.opts.OverlayTopRatio}
	}
	h := w * float64(overlay.H) / float64(overlay.W)
	return Rect{
		X: (float64(canvas.W)-w)/2 + float64(adj.OffsetX),
		Y: float64(canvas.H)*c.opts.OverlayTopRatio + float64(adj.OffsetY),
		W: w,
		H: h,
	}
}

// multiply blends src over dst inside r with the multiply mode at the given
// global alpha. Both images hold premultiplied colour, so per channel
//
//	co = s*(1-ab) + s*b + b*(1-as)
//	ao = as + ab - as*ab
//
// where s and b are the premultiplied source and backdrop components.
func multiply(dst, src *image.RGBA, r image.Rectangle, opacity float64) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			si := src.PixOffset(x, y)
			di := dst.PixOffset(x, y)
			sp := src.Pix[si : si+4 : si+4]
			dp := dst.Pix[di : di+4 : di+4]

			as := float64(sp[3]) / 255 * opacity
			if as == 0 {
				continue
			}
			ab := float64(dp[3]) / 255

			for i := 0; i < 3; i++ {
				s := float64(sp[i]) / 255 * opacity
				b := float64(dp[i]) / 255
				dp[i] = to8(s*(1-ab) + s*b + b*(1-as))
			}
			dp[3] = to8(as + ab - as*ab)
		}
	}
}

func to8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(math.Round(v * 255))
}
