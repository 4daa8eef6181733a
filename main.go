package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/previewlab/previewd/config"
	"github.com/previewlab/previewd/database"
	"github.com/previewlab/previewd/engine"
	"github.com/previewlab/previewd/engine/rasterizer"
	"github.com/previewlab/previewd/storage"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// injectGlobals injects all of our globals into their packages
func injectGlobals(logger *slog.Logger) {
	Logger = logger
	config.Logger = Logger
	database.Logger = Logger
	engine.Logger = Logger
	rasterizer.Logger = Logger
	storage.Logger = Logger
}

func main() {
	serverConfig, logger := config.SetupServer()
	injectGlobals(logger) //inject the logger into all of the packages

	// Show info banner if using ephemeral database
	if serverConfig.DatabaseType == "ephemeral" {
		fmt.Println("\n" + strings.Repeat("=", 50))
		fmt.Println("🚀  EPHEMERAL DATABASE MODE")
		fmt.Println(strings.Repeat("=", 50))
		fmt.Println("• Database will be destroyed on exit")
		fmt.Println("• Perfect for testing and development")
		fmt.Println("• No persistent data storage")
		fmt.Println(strings.Repeat("=", 50) + "\n")
	}

	Logger.Info("Setting up database", "type", serverConfig.DatabaseType)
	db := database.NewRepository(serverConfig)
	defer db.Close()
	Logger.Info("Database setup complete")

	store, err := storage.NewStore(serverConfig)
	if err != nil {
		Logger.Error("Failed to set up handle store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	rast := rasterizer.New(rasterizer.Config{
		Store:     store,
		HandleTTL: time.Duration(serverConfig.HandleTTLMinutes) * time.Minute,
		Disabled:  serverConfig.RenderingDisabled,
	})
	defer rast.Close()

	e := echo.New()
	Logger.Info("Echo created")

	// Custom 404 handler: JSON for API routes, default otherwise
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
		}

		if code == http.StatusNotFound && strings.HasPrefix(c.Request().URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, map[string]string{
				"error":   "Not Found",
				"message": "The requested API endpoint does not exist",
				"path":    c.Request().URL.Path,
			})
			return
		}

		e.DefaultHTTPErrorHandler(err, c)
	}

	serverHandler := engine.ServerHandler{
		DB:           db,
		Echo:         e,
		ServerConfig: serverConfig,
		Store:        store,
		Rasterizer:   rast,
	}
	Logger.Info("About to initialize schedules")
	serverHandler.InitializeSchedules() //initialize all the cron jobs
	Logger.Info("Schedules initialized, about to run startup checks")
	serverHandler.StartupChecks() //Run all the sanity checks
	Logger.Info("Startup checks complete")

	e.Use(middleware.CORSWithConfig(middleware.DefaultCORSConfig))

	// Preview API routes - all under /api/* prefix for clarity
	e.POST("/api/preview", serverHandler.ConvertDocument)
	e.DELETE("/api/preview/:id", serverHandler.ReleasePreview)
	e.GET("/api/previews/latest", serverHandler.GetLatestPreviews)
	e.POST("/api/extract", serverHandler.ExtractText)

	// Admin API routes
	e.GET("/api/about", serverHandler.GetAboutInfo)

	// Job tracking API routes
	e.GET("/api/jobs", serverHandler.GetRecentJobs)
	e.GET("/api/jobs/active", serverHandler.GetActiveJobs)
	e.GET("/api/jobs/:id", serverHandler.GetJob)

	// Preview view route (serves image bytes - not JSON, so not under /api/*)
	e.GET("/preview/view/:id", serverHandler.ViewPreview)

	if serverConfig.ListenAddrIP == "" {
		Logger.Info("No Ip Addr set, binding on ALL addresses")
	}

	Logger.Info("Starting HTTP server")

	// Try to start server with automatic port increment if port is in use
	maxRetries := 5
	startPort := serverConfig.ListenAddrPort
	var startErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		addr := fmt.Sprintf("%s:%s", serverConfig.ListenAddrIP, serverConfig.ListenAddrPort)
		Logger.Info("Attempting to start server", "address", addr, "attempt", attempt+1)

		startErr = e.Start(addr)

		// Check if error is "address already in use"
		if startErr != nil && isAddressInUse(startErr) {
			Logger.Warn("Port already in use, trying next port",
				"port", serverConfig.ListenAddrPort,
				"attempt", attempt+1,
				"max_attempts", maxRetries)

			// Increment port for next attempt
			portNum := 0
			fmt.Sscanf(serverConfig.ListenAddrPort, "%d", &portNum)
			portNum++
			serverConfig.ListenAddrPort = fmt.Sprintf("%d", portNum)

			if attempt == maxRetries-1 {
				Logger.Error("Failed to find available port after maximum retries",
					"start_port", startPort,
					"end_port", serverConfig.ListenAddrPort,
					"max_retries", maxRetries)
				os.Exit(1)
			}
		} else if startErr != nil {
			// Some other error occurred
			Logger.Error("Failed to start server", "error", startErr)
			os.Exit(1)
		} else {
			// Server started successfully
			break
		}
	}

	if startErr == nil && serverConfig.ListenAddrPort != startPort {
		Logger.Warn("Server started on alternative port due to conflicts",
			"requested_port", startPort,
			"actual_port", serverConfig.ListenAddrPort)
	}
}

// isAddressInUse checks if the error is due to address already in use
func isAddressInUse(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "address already in use")
}
