package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"bovine-backend/cmd"
	"bovine-backend/internal/api"
	"bovine-backend/internal/core"
	"bovine-backend/internal/database"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	ort "github.com/yalue/onnxruntime_go"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type Config struct {
	Port             int           `env:"PORT" envDefault:"8000"`
	ModelDir         string        `env:"MODEL_DIR" envDefault:"./models"`
	ModelVariant     string        `env:"MODEL_VARIANT" envDefault:"lightweight"`
	AppDataDir       string        `env:"APP_DATA_DIR" envDefault:"./data"`
	AllowedOrigins   []string      `env:"ALLOWED_ORIGINS" envDefault:"*"`
	URLFetchTimeout  time.Duration `env:"URL_FETCH_TIMEOUT" envDefault:"10s"`
	OnnxRuntimeDylib string        `env:"ONNX_RUNTIME_DYLIB"`
}

func createDatabase(root string) *gorm.DB {
	path := filepath.Join(root, "db", "classifications.db")
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		log.Fatalf("Failed to create database directory: %v", err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := database.GetMigrator(db).Migrate(); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	return db
}

func loadClassifier(cfg Config) *core.Classifier {
	loaders := core.NewClassifierLoaders()
	loader, ok := loaders[core.Variant(cfg.ModelVariant)]
	if !ok {
		log.Fatalf("invalid model variant %q, must be one of lightweight, balanced, accurate", cfg.ModelVariant)
	}

	classifier, err := loader(cfg.ModelDir)
	if err != nil {
		slog.Warn("could not load classification model, classify endpoints will report 503", "model_dir", cfg.ModelDir, "error", err)
		return nil
	}

	if classifier.Untrained() {
		slog.Warn("no trained head weights found, serving untrained heads; predictions carry no meaning until a trained artifact is provided", "model_dir", cfg.ModelDir)
	}
	return classifier
}

func main() {
	log.Println("Starting API Server...")

	cmd.LoadEnvFile()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	if cfg.OnnxRuntimeDylib != "" {
		ort.SetSharedLibraryPath(cfg.OnnxRuntimeDylib)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		log.Fatalf("could not init ONNX Runtime: %v", err)
	}
	defer func() {
		if err := ort.DestroyEnvironment(); err != nil {
			slog.Error("error destroying onnx env", "error", err)
		}
	}()

	db := createDatabase(cfg.AppDataDir)

	classifier := loadClassifier(cfg)
	if classifier != nil {
		defer classifier.Close()
	}

	// --- Chi Router Setup ---
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	apiHandler := api.NewBackendService(classifier, db, cfg.URLFetchTimeout)
	apiHandler.AddRoutes(r)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	// Goroutine for graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	slog.Info("server listening", "port", cfg.Port, "variant", cfg.ModelVariant, "model_loaded", classifier != nil)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server failed: %v", err)
	}
	log.Println("Server stopped")
}
