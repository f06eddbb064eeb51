package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"flacshare/cache"
	"flacshare/config"
	"flacshare/core/audio"
	"flacshare/core/auth"
	"flacshare/core/upload"
	"flacshare/db"
	"flacshare/logger"
	"flacshare/repository"
	"flacshare/storage"

	"github.com/gorilla/mux"
)

// Handler 持有所有 HTTP 处理器依赖
type Handler struct {
	uploads *upload.Manager
	catalog repository.CatalogRepository
	// 删除曲目时清理对象，删除失败的对象记入残留账本（可为 nil）
	blobs   storage.BlobStore
	orphans upload.OrphanRecorder
	tokens  *auth.TokenManager
	cfg     *config.Config
}

// NewHandler creates the API handler. orphans may be nil.
func NewHandler(uploads *upload.Manager, catalog repository.CatalogRepository, blobs storage.BlobStore,
	orphans upload.OrphanRecorder, tokens *auth.TokenManager, cfg *config.Config) *Handler {
	return &Handler{uploads: uploads, catalog: catalog, blobs: blobs, orphans: orphans, tokens: tokens, cfg: cfg}
}

// Routes builds the gorilla/mux router.
func (h *Handler) Routes() *mux.Router {
	router := mux.NewRouter()
	router.Use(corsMiddleware)

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()

	// 上传 session
	api.HandleFunc("/uploads", h.AuthMiddleware(h.StartUploadHandler)).Methods(http.MethodPost)
	api.HandleFunc("/uploads/{id}", h.AuthMiddleware(h.GetUploadHandler)).Methods(http.MethodGet)
	api.HandleFunc("/uploads/{id}/fields", h.AuthMiddleware(h.UpdateFieldHandler)).Methods(http.MethodPatch)
	api.HandleFunc("/uploads/{id}/cover", h.AuthMiddleware(h.SetCoverHandler)).Methods(http.MethodPut)
	api.HandleFunc("/uploads/{id}/submit", h.AuthMiddleware(h.SubmitUploadHandler)).Methods(http.MethodPost)
	api.HandleFunc("/uploads/{id}", h.AuthMiddleware(h.ResetUploadHandler)).Methods(http.MethodDelete)

	// 曲目目录
	api.HandleFunc("/tracks", h.AuthMiddleware(h.ListTracksHandler)).Methods(http.MethodGet)
	api.HandleFunc("/tracks/{id:[0-9]+}", h.AuthMiddleware(h.GetTrackHandler)).Methods(http.MethodGet)
	api.HandleFunc("/tracks/{id:[0-9]+}", h.AuthMiddleware(h.UpdateTrackHandler)).Methods(http.MethodPatch)
	api.HandleFunc("/tracks/{id:[0-9]+}", h.AuthMiddleware(h.DeleteTrackHandler)).Methods(http.MethodDelete)
	api.HandleFunc("/tracks/{id:[0-9]+}/play", h.AuthMiddleware(h.PlayTrackHandler)).Methods(http.MethodPost)
	api.HandleFunc("/users/me/stats", h.AuthMiddleware(h.UserStatsHandler)).Methods(http.MethodGet)

	return router
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Start 连接所有外部依赖并启动 HTTP 服务，收到 SIGINT/SIGTERM 后优雅关闭
func Start(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	blobs, err := storage.NewMinioBlobStore(cfg)
	if err != nil {
		return err
	}
	if err := blobs.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("failed to initialize MinIO: %w", err)
	}

	gormDB, err := db.OpenGorm(cfg)
	if err != nil {
		return err
	}
	defer db.Close(gormDB)
	if err := db.Migrate(gormDB); err != nil {
		return err
	}

	redisClient, err := cache.ConnectRedis(cfg)
	if err != nil {
		return err
	}
	defer redisClient.Close()
	logger.Info("Successfully connected to Redis")

	catalog := repository.NewGormCatalogRepository(gormDB)
	orphans := cache.NewOrphanLedger(redisClient)
	coordinator := upload.NewCoordinator(
		audio.NewAnalyzer(audio.NewDecoder()),
		blobs,
		catalog,
		upload.WithOrphanRecorder(orphans),
		upload.WithPlaceholderCover(cfg.PlaceholderCoverURL),
	)
	uploads := upload.NewManager(coordinator, upload.WithIdleTimeout(cfg.UploadIdleTimeout))
	// 回收空闲 session，收到退出信号时随 ctx 一起停止
	go uploads.Run(ctx, time.Minute)

	handler := NewHandler(uploads, catalog, blobs, orphans, auth.NewTokenManager(cfg.JWTSecret, 0), cfg)

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      handler.Routes(),
		ReadTimeout:  5 * time.Minute, // 无损文件上传耗时较长
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting", logger.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}
