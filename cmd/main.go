package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	_ "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/intranetportal/backend/docs"
	"github.com/intranetportal/backend/internal/config"
	"github.com/intranetportal/backend/internal/handlers"
	"github.com/intranetportal/backend/internal/logger"
	"github.com/intranetportal/backend/internal/middleware"
	"github.com/intranetportal/backend/internal/models"
	"github.com/intranetportal/backend/internal/repositories"
	"github.com/intranetportal/backend/internal/services"
	"github.com/intranetportal/backend/internal/storage"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

// multipartMemory is the part of a multipart body kept in memory; the rest spills to temp files
const multipartMemory = 8 * 1024 * 1024

// documentFiles names the JSON document of each content kind for the file backend
var documentFiles = map[models.ContentKind]string{
	models.ContentKindAnnouncement: "avisos.json",
	models.ContentKindMaterial:     "materials.json",
	models.ContentKindPdf:          "pdfs.json",
}

// @title Intranet Portal API
// @version 1.0
// @description Content ingestion for the intranet portal: announcements, materials and PDFs

// @contact.name Portal Support

// @host localhost:8080
// @BasePath /api
func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v\n", err)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logging.Level); err != nil {
		log.Fatalf("Failed to initialize logger: %v\n", err)
	}
	defer logger.Sync()

	logger.Logger.Info("Starting intranet portal back end", zap.String("backend", cfg.Storage.Backend))

	// Initialize repositories
	ids := repositories.NewIDGenerator()
	repos := make(map[models.ContentKind]services.ContentRepository, len(models.ContentKinds))

	switch cfg.Storage.Backend {
	case config.BackendMySQL:
		db, err := connectDB(cfg.DSN())
		if err != nil {
			logger.Logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		if err := runMigrations(db); err != nil {
			logger.Logger.Fatal("Failed to run migrations", zap.Error(err))
		}

		for _, kind := range models.ContentKinds {
			repos[kind] = repositories.NewMySQLRepository(db, kind, ids, logger.Logger)
		}
	default:
		for _, kind := range models.ContentKinds {
			path := filepath.Join(cfg.Storage.DataDir, documentFiles[kind])
			repos[kind] = repositories.NewDocumentRepository(path, kind, ids, logger.Logger)
		}
	}

	// Initialize storage
	fileStorage := storage.NewLocalStorage(cfg.Storage.PublicDir, cfg.Storage.PublicURLPrefix)

	// Initialize services
	ingestionService := services.NewIngestionService(repos, fileStorage, cfg.Schedule.Location, logger.Logger)

	// Initialize handlers
	contentHandler := handlers.NewContentHandler(ingestionService, logger.Logger, multipartMemory)
	healthHandler := handlers.NewHealthHandler(logger.Logger, cfg.Storage.Backend)

	// Setup router
	r := chi.NewRouter()

	// Apply middleware
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.LoggerMiddleware(logger.Logger))
	r.Use(middleware.RecoveryMiddleware(logger.Logger))
	r.Use(middleware.MetricsMiddleware)
	r.Use(middleware.CORSMiddleware(cfg.CORS.AllowedOrigins))

	// Health and metrics
	healthHandler.RegisterRoutes(r)

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL(fmt.Sprintf("http://localhost:%d/swagger/doc.json", cfg.Server.Port)),
	))

	// Stored attachments
	r.Handle(cfg.Storage.PublicURLPrefix+"/*", handlers.NewPublicFilesHandler(cfg.Storage.PublicDir, cfg.Storage.PublicURLPrefix))

	// Scope router to /api
	r.Route("/api", func(r chi.Router) {
		r.Use(httprate.LimitByIP(100, time.Minute))
		r.Use(middleware.RequestSizeLimitMiddleware(cfg.Server.MaxUploadSize))
		contentHandler.RegisterRoutes(r)
	})

	// Start server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  60 * time.Second, // Longer timeout for file uploads
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Logger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Logger.Info("Shutting down server...")

	// Graceful shutdown lets in-flight uploads finish their write and append
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Logger.Info("Server exited")
}

// connectDB connects to the database
func connectDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// runMigrations runs database migrations
func runMigrations(db *sql.DB) error {
	driver, err := mysql.WithInstance(db, &mysql.Config{
		MigrationsTable: "portal_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	// Get the working directory or use migrations folder relative to the binary
	migrationPath := "file://migrations"
	if _, err := os.Stat("migrations"); os.IsNotExist(err) {
		// Try parent directory if running from cmd
		if _, err := os.Stat("../migrations"); err == nil {
			migrationPath = "file://../migrations"
		}
	}

	m, err := migrate.NewWithDatabaseInstance(
		migrationPath,
		"mysql",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
