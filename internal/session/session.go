// Package session holds per-user try-on state: the loaded base and overlay
// images, the current adjustment and the last rendered result.
package session

import (
	"errors"
	"image"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lehigh-university-libraries/tryon/internal/images"
	"github.com/lehigh-university-libraries/tryon/internal/models"
)

var ErrNotFound = errors.New("session not found")

// Upload is an encoded image handed to a session
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// source is an immutable decoded input image. Renders always start from it.
type source struct {
	Upload
	img image.Image
}

func decodeSource(up Upload, maxBytes int64) (*source, error) {
	if up.ContentType == "" {
		up.ContentType = images.SniffType(up.Data)
	}
	if err := images.ValidateUpload(up.ContentType, int64(len(up.Data)), maxBytes); err != nil {
		return nil, err
	}
	img, _, err := images.Decode(up.Data)
	if err != nil {
		return nil, err
	}
	return &source{Upload: up, img: img}, nil
}

// ImageInfo describes a loaded source image
type ImageInfo struct {
	Filename string `json:"filename,omitempty"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// View is a read-only snapshot of a session
type View struct {
	ID           string            `json:"id"`
	Mode         models.Mode       `json:"mode"`
	ItemName     string            `json:"item_name,omitempty"`
	IsCustom     bool              `json:"is_custom"`
	Base         *ImageInfo        `json:"base,omitempty"`
	Overlay      *ImageInfo        `json:"overlay,omitempty"`
	Adjustment   models.Adjustment `json:"adjustment"`
	HasResult    bool              `json:"has_result"`
	ResultSource string            `json:"result_source,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// Session is one user's try-on workspace
type Session struct {
	ID        string
	CreatedAt time.Time

	mu           sync.Mutex
	mode         models.Mode
	itemName     string
	isCustom     bool
	base         *source
	overlay      *source
	adjustment   models.Adjustment
	result       []byte
	resultSource string
	generation   uint64
}

func newSession(mode models.Mode) *Session {
	if mode == "" {
		mode = models.ModeUpload
	}
	return &Session{
		ID:         uuid.NewString(),
		CreatedAt:  time.Now(),
		mode:       mode,
		adjustment: models.DefaultAdjustment(),
	}
}

// Reset clears both images, the result and the item, and restores the
// default adjustment. The mode is kept.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.base = nil
	s.overlay = nil
	s.itemName = ""
	s.isCustom = false
	s.adjustment = models.DefaultAdjustment()
	s.result = nil
	s.resultSource = ""
	s.generation++
}

// View returns a snapshot of the session
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() View {
	v := View{
		ID:           s.ID,
		Mode:         s.mode,
		ItemName:     s.itemName,
		IsCustom:     s.isCustom,
		Adjustment:   s.adjustment,
		HasResult:    s.result != nil,
		ResultSource: s.resultSource,
		CreatedAt:    s.CreatedAt,
	}
	if s.base != nil {
		v.Base = info(s.base)
	}
	if s.overlay != nil {
		v.Overlay = info(s.overlay)
	}
	return v
}

func info(src *source) *ImageInfo {
	b := src.img.Bounds()
	return &ImageInfo{Filename: src.Filename, Width: b.Dx(), Height: b.Dy()}
}

// Result returns the last committed result PNG, if any
func (s *Session) Result() ([]byte, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.resultSource, s.result != nil
}

type Registry struct {
	sessions map[string]*Session
	mu       sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
	}
}

func (r *Registry) Create(mode models.Mode) *Session {
	s := newSession(mode)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
	return s
}

func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, exists := r.sessions[id]
	return s, exists
}

// GetAll returns every session, oldest first
func (r *Registry) GetAll() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, exists := r.sessions[id]
	delete(r.sessions, id)
	return exists
}
