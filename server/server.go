package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"RPGMixer/cache"
	"RPGMixer/config"
	"RPGMixer/core/audio"
	"RPGMixer/core/auth"
	"RPGMixer/core/catalog"
	"RPGMixer/core/mixer"
	"RPGMixer/core/persist"
	"RPGMixer/db"
	"RPGMixer/logger"
	"RPGMixer/model"
	"RPGMixer/repository"
	"RPGMixer/storage"
)

// Repositories groups the persistence backends the server runs on.
type Repositories struct {
	Tracks   repository.TrackRepository
	Presets  repository.PresetRepository
	Settings repository.SettingsRepository
	Orders   repository.OrderRepository
}

// MemoryRepositories returns an empty in-memory set.
func MemoryRepositories() Repositories {
	return Repositories{
		Tracks:   repository.NewMemoryTrackRepository(),
		Presets:  repository.NewMemoryPresetRepository(),
		Settings: repository.NewMemorySettingsRepository(),
		Orders:   repository.NewMemoryOrderRepository(),
	}
}

// app is the running server and everything it must shut down.
type app struct {
	cfg       *config.Config
	repos     Repositories
	minio     *storage.Minio
	persister *persist.Repositories
	mixer     *mixer.Mixer
	hub       *StateHub
	watcher   *catalog.Watcher
	closers   []func()
}

func (a *app) onClose(fn func()) { a.closers = append(a.closers, fn) }

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// openRepositories connects MySQL and Redis, or falls back to memory.
func (a *app) openRepositories() error {
	if a.cfg.Persistence == config.PersistenceMemory {
		logger.Warn("using in-memory persistence, state is lost on restart")
		a.repos = MemoryRepositories()
		return nil
	}

	if err := db.ConnectGormDB(a.cfg); err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	a.onClose(func() {
		if err := db.CloseGormDB(); err != nil {
			logger.Warn("close database", logger.ErrorField(err))
		}
	})
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	if err := db.ConnectRedis(a.cfg); err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	a.onClose(func() {
		if err := db.CloseRedis(); err != nil {
			logger.Warn("close redis", logger.ErrorField(err))
		}
	})

	a.repos = Repositories{
		Tracks:   repository.NewGormTrackRepository(db.GormDB),
		Presets:  repository.NewGormPresetRepository(db.GormDB),
		Settings: repository.NewGormSettingsRepository(db.GormDB),
		Orders:   cache.NewOrderCache(db.RedisClient),
	}
	return nil
}

// opener resolves track locators. Bare paths go to the asset tree on disk or
// to the bucket, depending on the storage mode.
func (a *app) opener() audio.Opener {
	web := audio.NewHTTPOpener()
	o := audio.MultiOpener{
		Schemes:  map[string]audio.Opener{"http": web, "https": web},
		Fallback: audio.FileOpener{Root: a.cfg.AssetsDir},
	}
	if a.minio != nil {
		o.Schemes["minio"] = a.minio
		if a.cfg.StorageMode == config.StorageMinio {
			o.Fallback = a.minio
		}
	}
	return o
}

func (a *app) backend() audio.Backend {
	if a.cfg.AudioOutput == "none" {
		logger.Info("audio output disabled, mixing without a sound device")
		return audio.NewMock()
	}
	b, err := audio.NewBeepBackend(a.opener(), a.cfg.AudioSampleRate, a.cfg.AudioBufferSize, a.cfg.AudioSFXCache)
	if err != nil {
		logger.Error("speaker unavailable, mixing without a sound device", logger.ErrorField(err))
		return audio.NewMock()
	}
	a.onClose(b.Close)
	return b
}

// scan lists the assets of the configured storage.
func (a *app) scan(ctx context.Context) ([]model.Track, error) {
	if a.cfg.StorageMode == config.StorageMinio {
		if a.minio == nil {
			return nil, storage.ErrNotInitialized
		}
		keys, err := a.minio.AudioKeys(ctx)
		if err != nil {
			return nil, err
		}
		return catalog.FromPaths(keys), nil
	}
	return catalog.Scanner{Root: a.cfg.AssetsDir}.Scan()
}

// refreshCatalog rescans the assets, upserts them and returns the full track
// list, which also holds tracks added through the API.
func (a *app) refreshCatalog(ctx context.Context) ([]model.Track, error) {
	scanned, err := a.scan(ctx)
	if err != nil {
		logger.Warn("asset scan failed, using stored tracks only", logger.ErrorField(err))
	} else if err := a.repos.Tracks.SaveAll(ctx, scanned); err != nil {
		return nil, fmt.Errorf("save scanned tracks: %w", err)
	}
	return a.repos.Tracks.List(ctx)
}

func (a *app) snapshot(ctx context.Context) (mixer.Snapshot, error) {
	tracks, err := a.refreshCatalog(ctx)
	if err != nil {
		return mixer.Snapshot{}, err
	}
	presets, err := a.repos.Presets.List(ctx)
	if err != nil {
		return mixer.Snapshot{}, fmt.Errorf("load presets: %w", err)
	}
	settings := model.DefaultSettings(a.cfg.DefaultContext)
	if s, err := a.repos.Settings.Get(ctx); err != nil {
		return mixer.Snapshot{}, fmt.Errorf("load settings: %w", err)
	} else if s != nil {
		settings = *s
	}
	orders, err := a.repos.Orders.All(ctx)
	if err != nil {
		return mixer.Snapshot{}, fmt.Errorf("load playlist orders: %w", err)
	}
	return mixer.Snapshot{Tracks: tracks, Presets: presets, Settings: settings, Orders: orders}, nil
}

// watchAssets rescans the local asset tree whenever it changes.
func (a *app) watchAssets() {
	if a.cfg.StorageMode != config.StorageLocal || !a.cfg.WatchAssets {
		return
	}
	w, err := catalog.NewWatcher(a.cfg.AssetsDir, catalog.DefaultDebounce)
	if err != nil {
		logger.Warn("asset watcher unavailable", logger.String("dir", a.cfg.AssetsDir), logger.ErrorField(err))
		return
	}
	a.watcher = w
	a.onClose(func() { _ = w.Close() })

	go func() {
		for {
			select {
			case _, ok := <-w.Changes:
				if !ok {
					return
				}
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				tracks, err := a.refreshCatalog(ctx)
				cancel()
				if err != nil {
					logger.Warn("asset rescan failed", logger.ErrorField(err))
					continue
				}
				if err := a.mixer.SetCatalog(tracks); err != nil {
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn("asset watcher error", logger.ErrorField(err))
			}
		}
	}()
}

func newApp(cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}
	if err := a.openRepositories(); err != nil {
		a.close()
		return nil, err
	}

	if cfg.StorageMode == config.StorageMinio || cfg.MinioAccessKey != "" {
		if err := storage.InitMinio(cfg); err != nil {
			if cfg.StorageMode == config.StorageMinio {
				a.close()
				return nil, fmt.Errorf("initialize minio: %w", err)
			}
			logger.Warn("minio unavailable, minio:// locators will fail", logger.ErrorField(err))
		} else {
			a.minio = storage.GetMinio()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	snap, err := a.snapshot(ctx)
	if err != nil {
		a.close()
		return nil, err
	}

	a.persister = persist.NewRepositories(a.repos.Settings, a.repos.Presets, a.repos.Orders, persist.DefaultTimeout)
	a.onClose(a.persister.Close)

	a.mixer = mixer.New(a.backend(), a.persister, cfg.FrameInterval())
	a.hub = NewStateHub()
	go a.hub.Run()
	a.onClose(a.hub.Stop)

	if err := a.mixer.Start(snap); err != nil {
		a.close()
		return nil, err
	}
	a.onClose(a.mixer.Close)
	if err := a.mixer.Watch(a.hub.OnChange); err != nil {
		a.close()
		return nil, err
	}
	if st, err := a.mixer.State(); err == nil {
		a.hub.OnChange(0, st)
	}

	a.watchAssets()
	return a, nil
}

func (a *app) handlers() Handlers {
	var assets http.Handler = localAssets(a.cfg.AssetsDir)
	if a.cfg.StorageMode == config.StorageMinio {
		assets = NewAssetHandler(a.minio)
	}
	return Handlers{
		Auth: NewAuthHandler(a.cfg.JWTSecret, a.cfg.TokenTTL, auth.Credentials{
			Operator:     a.cfg.AdminUser,
			PasswordHash: a.cfg.AdminPasswordHash,
		}),
		Persistence: NewPersistenceHandler(a.repos.Tracks, a.repos.Presets, a.repos.Settings, a.repos.Orders,
			a.cfg.DefaultContext, a.mixer),
		Control: NewControlHandler(a.mixer, a.hub),
		Assets:  assets,
	}
}

// Start initializes and starts the HTTP server. It returns after a graceful
// shutdown on SIGINT or SIGTERM.
func Start(cfg *config.Config) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	h := a.handlers()
	if !h.Auth.Enabled() {
		logger.Warn("JWT_SECRET is empty, the API is open to anyone on the network")
	}

	// 设置服务器超时
	srv := &http.Server{
		Addr:        cfg.HTTPAddr,
		Handler:     NewRouter(h),
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	// 创建一个通道来接收操作系统信号
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			logger.String("addr", cfg.HTTPAddr),
			logger.String("storage", cfg.StorageMode),
			logger.String("persistence", cfg.Persistence),
			logger.String("audio", cfg.AudioOutput))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// 等待中断信号
	select {
	case <-stop:
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	}
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
