package models

import (
	"fmt"
	"time"
)

// Adjustment holds the user-controlled overlay placement for a try-on session
type Adjustment struct {
	Scale   float64 `json:"scale"`    // percent, 100 = default size
	OffsetX int     `json:"offset_x"` // pixels, signed
	OffsetY int     `json:"offset_y"` // pixels, signed
}

// DefaultAdjustment returns the adjustment a fresh or reset session starts with
func DefaultAdjustment() Adjustment {
	return Adjustment{Scale: 100}
}

// Mode selects how the user photo is obtained on the try-on side
type Mode string

const (
	ModeCamera Mode = "camera"
	ModeUpload Mode = "upload"
)

// ParseMode validates a mode string
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeCamera, ModeUpload:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("invalid mode %q: must be 'camera' or 'upload'", s)
	}
}

// HandoffRecord is the single-use message passed from the catalog to the try-on flow
type HandoffRecord struct {
	ImageRef    string `json:"image_ref"` // data URI or URL
	DisplayName string `json:"display_name"`
	Mode        Mode   `json:"mode"`
	IsCustom    bool   `json:"is_custom"`
}

// UploadedItem is a user-uploaded clothing item kept in the custom gallery
type UploadedItem struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	ImageRef    string `json:"image"`
	UploadDate  string `json:"uploadDate"`
	Category    string `json:"category"`
}

// CatalogItem is a preset clothing item from the catalog file
type CatalogItem struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Category    string   `json:"category" yaml:"category"`
	ImageRef    string   `json:"image" yaml:"image"`
	Description string   `json:"description,omitempty" yaml:"description"`
	Tags        []string `json:"tags,omitempty" yaml:"tags"`
}

// Notice is a transient, auto-dismissing status message for the user
type Notice struct {
	Level          string `json:"level"` // "info", "success", "warning", "error"
	Message        string `json:"message"`
	DismissAfterMS int    `json:"dismiss_after_ms"`
}

const noticeDismissMS = 3000

func Info(msg string) *Notice    { return &Notice{Level: "info", Message: msg, DismissAfterMS: noticeDismissMS} }
func Success(msg string) *Notice { return &Notice{Level: "success", Message: msg, DismissAfterMS: noticeDismissMS} }
func Warning(msg string) *Notice { return &Notice{Level: "warning", Message: msg, DismissAfterMS: noticeDismissMS} }
func Failure(msg string) *Notice { return &Notice{Level: "error", Message: msg, DismissAfterMS: noticeDismissMS} }

// TryOnResult records one try-on attempt
type TryOnResult struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	ItemName   string    `json:"item_name"`
	Mode       string    `json:"mode"`
	Source     string    `json:"source"` // "remote" or "local"
	Provider   string    `json:"provider,omitempty"`
	Error      string    `json:"error,omitempty"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}
