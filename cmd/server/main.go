package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/devzbysiu/dox-sub000/internal/auth"
	"github.com/devzbysiu/dox-sub000/internal/cipher"
	"github.com/devzbysiu/dox-sub000/internal/config"
	"github.com/devzbysiu/dox-sub000/internal/eventbus"
	"github.com/devzbysiu/dox-sub000/internal/fs"
	"github.com/devzbysiu/dox-sub000/internal/httpapi"
	"github.com/devzbysiu/dox-sub000/internal/notifier"
	"github.com/devzbysiu/dox-sub000/internal/pipeline/encrypter"
	"github.com/devzbysiu/dox-sub000/internal/pipeline/extractor"
	"github.com/devzbysiu/dox-sub000/internal/pipeline/indexer"
	"github.com/devzbysiu/dox-sub000/internal/pipeline/mover"
	"github.com/devzbysiu/dox-sub000/internal/pipeline/thumbnail"
	"github.com/devzbysiu/dox-sub000/internal/searchindex"
	"github.com/devzbysiu/dox-sub000/internal/watcher"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "", "path to the dox TOML config file")
	jwksURL := flag.String("jwks-url", os.Getenv("DOX_JWKS_URL"), "JWKS endpoint for bearer-token verification")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	path, err := config.ResolvePath(*configPath)
	if err != nil {
		logger.Error("failed to resolve config path", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load(path)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		logger.Info("no config file found, starting interactive setup", "path", path)
		cfg, err = config.Prompt(path, bufio.NewReader(os.Stdin))
	}
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := run(logger, cfg, *jwksURL); err != nil {
		logger.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, cfg *config.Config, jwksURL string) error {
	bus := eventbus.NewWithCapacity(cfg.BusCapacity, logger)
	filesystem := fs.NewLocalFilesystem()
	docCipher := cipher.New()

	index, err := searchindex.Open(cfg.IndexDir)
	if err != nil {
		return fmt.Errorf("open search index: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w, err := watcher.New(ctx, cfg.WatchedDir, 100*time.Millisecond, logger)
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	watcherService := watcher.NewDocsWatcherService(w, bus, logger)

	moverSvc := mover.New(bus, filesystem, cfg.DocsDir, logger)

	thumbFactory := thumbnail.NewFactory(filesystem, thumbnail.PopplerRenderer{})
	thumbSvc := thumbnail.NewService(bus, filesystem, thumbFactory, cfg.ThumbnailsDir, logger)

	extractFactory := extractor.NewFactory(filesystem,
		extractor.TesseractEngine{Language: cfg.OCRLanguage},
		extractor.PopplerTextExtractor{},
	)
	extractSvc := extractor.NewService(bus, extractFactory, logger)

	encrypterSvc := encrypter.New(bus, filesystem, docCipher, logger)

	indexerSvc := indexer.NewService(bus, index, logger)

	notif := notifier.New(bus, noSubscriptions{}, notifier.VAPIDKeys{}, cfg.CooldownTime, logger)

	for _, stage := range []func(context.Context){
		watcherService.Run,
		moverSvc.Run,
		thumbSvc.Run,
		extractSvc.Run,
		encrypterSvc.Run,
		indexerSvc.Run,
		notif.Run,
	} {
		go stage(ctx)
	}

	var verifier *auth.Verifier
	if jwksURL != "" {
		cache := auth.NewJWKSCache(auth.HTTPJWKSSource{URL: jwksURL}, 15*time.Minute)
		verifier = auth.NewVerifier(cache.Keyfunc)
	}

	handlers := httpapi.NewHandlers(index, filesystem, docCipher, cfg.DocsDir, cfg.ThumbnailsDir, cfg.WatchedDir, logger)
	router := httpapi.NewRouter(handlers, verifier)

	srv := &http.Server{
		Addr:         cfg.NotificationsAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "addr", cfg.NotificationsAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// noSubscriptions is the default notifier.SubscriptionStore until a real
// push-subscription registry is wired in; it sends no digests but keeps the
// cron ticking so the notifier's scheduling loop is exercised in production.
type noSubscriptions struct{}

func (noSubscriptions) Subscriptions() []notifier.Subscription { return nil }
