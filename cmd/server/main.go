package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/battery-insight/backend/internal/api"
	"github.com/battery-insight/backend/internal/archive"
	"github.com/battery-insight/backend/internal/config"
	"github.com/battery-insight/backend/internal/ingest"
	"github.com/battery-insight/backend/internal/parser"
	"github.com/battery-insight/backend/internal/session"
	"github.com/battery-insight/backend/internal/storage"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Resolve config next to the executable
	exePath, err := os.Executable()
	if err != nil {
		fmt.Printf("Failed to get executable path: %v\n", err)
		os.Exit(1)
	}
	exeDir := filepath.Dir(exePath)

	configPath := filepath.Join(exeDir, "battery-insight.yaml")
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Ensure all data directories exist
	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Printf("Failed to create directories: %v\n", err)
		os.Exit(1)
	}

	// Initialize storage
	fileStore, err := storage.NewLocalStore(cfg.GetUploadDir())
	if err != nil {
		fmt.Printf("Failed to initialize storage: %v\n", err)
		os.Exit(1)
	}

	// Initialize session manager with analysis defaults
	sessionMgr := session.NewManager(fileStore, parser.Options{
		DesignCapacityMAh: cfg.Analysis.DesignCapacityMAh,
		DrainTolerance:    cfg.Analysis.DrainTolerance,
	}, cfg.Processing.MaxSessions)

	// Start background session cleanup
	go func() {
		ticker := time.NewTicker(time.Duration(cfg.Processing.CleanupIntervalMinutes) * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			sessionMgr.CleanupOldSessions(time.Duration(cfg.Processing.SessionTimeoutMinutes) * time.Minute)
		}
	}()

	// Open the cross-dump trend archive
	var trends api.TrendStore
	trendArchive, err := archive.New(cfg.GetArchivePath(), archive.Options{
		Threads:     cfg.Analysis.ArchiveThreads,
		MemoryLimit: cfg.Analysis.ArchiveMemoryLimit,
	})
	if err != nil {
		fmt.Printf("Warning: trend archive unavailable: %v\n", err)
	} else {
		trends = trendArchive
		defer trendArchive.Close()
	}

	// Watch the drop directory for dumps copied in from devices
	if cfg.Ingest.Enabled {
		watcher, err := ingest.NewWatcher(cfg.Ingest.WatchDirectory, fileStore, sessionMgr)
		if err != nil {
			fmt.Printf("Warning: ingest watcher unavailable: %v\n", err)
		} else if err := watcher.Start(); err != nil {
			fmt.Printf("Warning: ingest watcher failed to start: %v\n", err)
		} else {
			defer watcher.Stop()
		}
	}

	e := echo.New()
	e.HideBanner = true

	// Configure middleware
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return strings.HasSuffix(path, "/status") ||
				strings.HasSuffix(path, "/progress") ||
				path == "/health"
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))

	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Skipper: func(c echo.Context) bool {
			// SSE streams must not be buffered by compression.
			return strings.HasSuffix(c.Request().URL.Path, "/progress")
		},
	}))

	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	if cfg.Server.EnableCORS {
		origins := strings.Split(cfg.Server.AllowOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		if len(origins) == 0 || (len(origins) == 1 && origins[0] == "") {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}

	api.SetupMiddleware(e)

	handlers := api.NewHandlers(&api.Dependencies{
		Store:      fileStore,
		SessionMgr: sessionMgr,
		Trends:     trends,
		Version:    Version,
	})
	api.RegisterRoutes(e, handlers)

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           Battery Insight Server                          ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Data Dir:  %-46s║\n", cfg.GetDataDir())
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")

	e.Logger.Fatal(e.StartServer(s))
}
