package remote

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lehigh-university-libraries/tryon/internal/providers"
)

func testRequest() providers.Request {
	return providers.Request{
		Clothing: providers.Image{Filename: "shirt.png", ContentType: "image/png", Data: []byte("clothing")},
		Avatar:   &providers.Image{Filename: "me.png", ContentType: "image/png", Data: []byte("avatar")},
	}
}

func TestTryOnSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/virtual-tryon" {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("Failed to parse multipart: %v", err)
		}
		for field, want := range map[string]string{"clothing_image": "clothing", "avatar_image": "avatar"} {
			f, hdr, err := r.FormFile(field)
			if err != nil {
				t.Fatalf("Missing %s: %v", field, err)
			}
			got, _ := io.ReadAll(f)
			if string(got) != want {
				t.Errorf("%s: expected %q, got %q", field, want, got)
			}
			if hdr.Header.Get("Content-Type") != "image/png" {
				t.Errorf("%s: expected image/png, got %s", field, hdr.Header.Get("Content-Type"))
			}
		}
		_ = json.NewEncoder(w).Encode(tryOnResponse{
			Success:           true,
			ResultImageBase64: base64.StdEncoding.EncodeToString([]byte("result")),
		})
	}))
	defer srv.Close()

	c := New(providers.Config{BaseURL: srv.URL})
	got, err := c.TryOn(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("TryOn failed: %v", err)
	}
	if string(got) != "result" {
		t.Errorf("Expected result bytes, got %q", got)
	}
}

func TestTryOnWithoutAvatar(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseMultipartForm(1 << 20)
		if _, _, err := r.FormFile("avatar_image"); err == nil {
			t.Error("Expected no avatar_image part")
		}
		_ = json.NewEncoder(w).Encode(tryOnResponse{Success: true, ResultImageBase64: "cmVzdWx0"})
	}))
	defer srv.Close()

	req := testRequest()
	req.Avatar = nil
	if _, err := New(providers.Config{BaseURL: srv.URL}).TryOn(context.Background(), req); err != nil {
		t.Fatalf("TryOn failed: %v", err)
	}
}

func TestTryOnErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    error
	}{
		{
			name: "success false",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(tryOnResponse{Success: false, Error: "no person detected"})
			},
			want: ErrRemote,
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(tryOnResponse{Error: "model crashed"})
			},
			want: ErrRemote,
		},
		{
			name: "not json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("<html>"))
			},
			want: ErrRemote,
		},
		{
			name: "missing image",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(tryOnResponse{Success: true})
			},
			want: ErrRemote,
		},
		{
			name: "timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				time.Sleep(200 * time.Millisecond)
			},
			want: ErrUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c := New(providers.Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
			if _, err := c.TryOn(context.Background(), testRequest()); !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestTryOnUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(providers.Config{BaseURL: url}).TryOn(context.Background(), testRequest())
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable, got %v", err)
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		healthy bool
	}{
		{name: "healthy", status: http.StatusOK, body: `{"status":"healthy"}`, healthy: true},
		{name: "degraded", status: http.StatusOK, body: `{"status":"loading"}`, healthy: false},
		{name: "down", status: http.StatusServiceUnavailable, body: ``, healthy: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/health" {
					t.Errorf("Unexpected path %s", r.URL.Path)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			if got := New(providers.Config{BaseURL: srv.URL}).Healthy(context.Background()); got != tt.healthy {
				t.Errorf("Expected healthy=%v, got %v", tt.healthy, got)
			}
		})
	}
}
