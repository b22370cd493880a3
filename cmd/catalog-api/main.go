package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	_ "github.com/noah-isme/course-catalog-api/api/swagger"
	"github.com/noah-isme/course-catalog-api/internal/handler"
	"github.com/noah-isme/course-catalog-api/internal/repository"
	"github.com/noah-isme/course-catalog-api/internal/server"
	"github.com/noah-isme/course-catalog-api/internal/service"
	"github.com/noah-isme/course-catalog-api/pkg/cache"
	"github.com/noah-isme/course-catalog-api/pkg/config"
	"github.com/noah-isme/course-catalog-api/pkg/database"
	"github.com/noah-isme/course-catalog-api/pkg/logger"
	"github.com/noah-isme/course-catalog-api/pkg/storage"
)

// @title Course Catalog API
// @version 1.0.0
// @description Course authoring, enrollment, progress tracking and reviews.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, course cache disabled", zap.Error(err))
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	metrics := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Catalog.CacheTTL, logr, cfg.Catalog.CacheEnabled && redisClient != nil)

	mediaStore, tokens, closeMedia, err := buildMediaStore(ctx, cfg)
	if err != nil {
		logr.Fatal("failed to init media storage", zap.Error(err))
	}
	defer closeMedia()

	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	reviewRepo := repository.NewReviewRepository(db)

	validate := service.NewCourseValidator()
	courseSvc := service.NewCourseService(courseRepo, cacheSvc, metrics, validate, logr, service.CatalogOptions{
		DefaultPageSize: cfg.Catalog.DefaultPageSize,
		MaxPageSize:     cfg.Catalog.MaxPageSize,
		CacheTTL:        cfg.Catalog.CacheTTL,
	})
	lifecycleSvc := service.NewLifecycleService(courseRepo, cacheSvc, metrics, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, courseRepo, cacheSvc, metrics, logr)
	progressSvc := service.NewProgressService(enrollmentRepo, metrics, logr)
	reviewSvc := service.NewReviewService(reviewRepo, cacheSvc, metrics, validate, logr)
	mediaSvc := service.NewMediaService(mediaStore, courseRepo, tokens, cacheSvc, metrics, validate, logr, service.MediaOptions{
		MaxThumbnailBytes: cfg.Media.MaxThumbnailBytes,
		MaxVideoBytes:     cfg.Media.MaxVideoBytes,
		AllowedImageMIMEs: cfg.Media.AllowedImageMIMEs,
		AllowedVideoMIMEs: cfg.Media.AllowedVideoMIMEs,
	})
	certificateSvc := service.NewCertificateService(enrollmentRepo, courseRepo, enrollmentSvc, nil, nil, metrics, logr)
	tokenSvc := service.NewTokenService(service.TokenConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})

	checks := map[string]handler.ReadinessCheck{
		"postgres": db.PingContext,
	}
	if redisClient != nil {
		checks["redis"] = cacheRepo.Ping
	}

	router := server.NewRouter(server.Dependencies{
		Config:  cfg,
		Logger:  logr,
		Tokens:  tokenSvc,
		Metrics: metrics,
	}, server.Handlers{
		Courses:      handler.NewCourseHandler(courseSvc),
		Lifecycle:    handler.NewLifecycleHandler(lifecycleSvc),
		Enrollments:  handler.NewEnrollmentHandler(enrollmentSvc),
		Progress:     handler.NewProgressHandler(progressSvc, validate),
		Reviews:      handler.NewReviewHandler(reviewSvc),
		Media:        handler.NewMediaHandler(mediaSvc),
		Certificates: handler.NewCertificateHandler(certificateSvc),
		Metrics:      handler.NewMetricsHandler(metrics, checks, logr),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

type mediaBackend interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) (*storage.Object, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

type mediaTokens interface {
	Parse(token string, allowExpired bool) (subject, relPath string, expiresAt time.Time, err error)
}

// buildMediaStore selects the blob store. The local driver serves objects
// through signed /media URLs; GCS objects are served by the bucket.
func buildMediaStore(ctx context.Context, cfg *config.Config) (mediaBackend, mediaTokens, func(), error) {
	switch cfg.Media.Driver {
	case config.MediaDriverGCS:
		store, err := storage.NewGCSStorage(ctx, cfg.Media.GCSBucket, cfg.Media.GCSCredentialsFile, "")
		if err != nil {
			return nil, nil, nil, err
		}
		return store, nil, func() { _ = store.Close() }, nil
	case config.MediaDriverLocal, "":
		signer := storage.NewSignedURLSigner(cfg.Media.SignedURLSecret, cfg.Media.SignedURLTTL)
		baseURL := cfg.Media.PublicBaseURL + cfg.APIPrefix + "/media"
		store, err := storage.NewLocalStorage(cfg.Media.StorageDir, storage.SignedURLFunc(signer, baseURL))
		if err != nil {
			return nil, nil, nil, err
		}
		return store, signer, func() {}, nil
	}
	return nil, nil, nil, fmt.Errorf("unknown media driver %q", cfg.Media.Driver)
}
