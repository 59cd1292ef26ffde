package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	"github.com/lehigh-university-libraries/tryon/internal/capture"
	"github.com/lehigh-university-libraries/tryon/internal/catalog"
	"github.com/lehigh-university-libraries/tryon/internal/config"
	"github.com/lehigh-university-libraries/tryon/internal/gemini"
	"github.com/lehigh-university-libraries/tryon/internal/handoff"
	"github.com/lehigh-university-libraries/tryon/internal/history"
	"github.com/lehigh-university-libraries/tryon/internal/images"
	"github.com/lehigh-university-libraries/tryon/internal/openai"
	"github.com/lehigh-university-libraries/tryon/internal/providers"
	"github.com/lehigh-university-libraries/tryon/internal/remote"
	"github.com/lehigh-university-libraries/tryon/internal/session"
	"github.com/lehigh-university-libraries/tryon/internal/storage"
	"github.com/lehigh-university-libraries/tryon/internal/wardrobe"
)

// app holds the components shared by the subcommands
type app struct {
	cfg            *config.Config
	db             *sql.DB
	kv             storage.KV
	history        *history.Store
	catalog        *catalog.Catalog
	wardrobe       *wardrobe.Collection
	tryOnHandoff   *handoff.Store
	catalogHandoff *handoff.Store
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	hist, err := history.New(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	cat, err := catalog.Load(cfg.CatalogFile)
	if err != nil {
		db.Close()
		return nil, err
	}

	kv := storage.NewSQLite(db)
	return &app{
		cfg:            cfg,
		db:             db,
		kv:             kv,
		history:        hist,
		catalog:        cat,
		wardrobe:       wardrobe.New(kv, cfg.MaxUploadBytes),
		tryOnHandoff:   handoff.New(kv, handoff.TryOnKeys),
		catalogHandoff: handoff.New(kv, handoff.CatalogKeys),
	}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

// assetsDir is where relative catalog image paths live
func (a *app) assetsDir() string {
	return filepath.Dir(a.cfg.CatalogFile)
}

// fetcher resolves handoff images for the server: local paths stay under the
// assets directory and URLs must be catalog images or on TRYON_IMAGE_HOSTS
func (a *app) fetcher() *images.Fetcher {
	f := images.NewFetcher()
	f.MaxBytes = a.cfg.MaxUploadBytes
	f.BaseDir = a.assetsDir()
	f.AllowURL = func(rawURL string) bool {
		return a.catalog.HasImage(rawURL) || a.cfg.ImageHostAllowed(rawURL)
	}
	return f
}

// newProvider builds the try-on provider named by TRYON_PROVIDER
func newProvider(cfg *config.Config) (providers.Provider, error) {
	pc := cfg.ProviderConfig()
	switch cfg.Provider {
	case config.ProviderTryOnAPI:
		return remote.New(pc), nil
	case config.ProviderGemini:
		return gemini.New(pc), nil
	case config.ProviderOpenAI:
		return openai.New(pc), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// camera returns nil when no capture device is configured
func (a *app) camera(spec string) (*capture.Adapter, error) {
	if spec == "" {
		spec = a.cfg.Camera
	}
	if spec == "" {
		return nil, nil
	}
	dev, err := capture.FromSpec(spec)
	if err != nil {
		return nil, err
	}
	return capture.NewAdapter(dev), nil
}

func (a *app) sessions(p providers.Provider, cam *capture.Adapter) *session.Service {
	return session.NewService(session.NewRegistry(), session.Options{
		Canvas:         a.cfg.Canvas(),
		Compositor:     a.cfg.CompositorOptions(),
		MaxUploadBytes: a.cfg.MaxUploadBytes,
		Provider:       p,
		History:        a.history,
		Fetcher:        a.fetcher(),
		Camera:         cam,
	})
}
