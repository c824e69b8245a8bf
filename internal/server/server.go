package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/sngm3741/contact-form-services/api/internal/config"
	contactapp "github.com/sngm3741/contact-form-services/api/internal/contact/application"
	"github.com/sngm3741/contact-form-services/api/internal/infrastructure/mail"
	"github.com/sngm3741/contact-form-services/api/internal/interfaces/http/common"
	publichttp "github.com/sngm3741/contact-form-services/api/internal/interfaces/http/public"
	"github.com/sngm3741/contact-form-services/api/internal/metrics"
)

// Deps は main で組み立てたインフラ依存をまとめたもの。
type Deps struct {
	Logger     zerolog.Logger
	Repository contactapp.SubmissionRepository
	Sender     contactapp.NotificationSender
	// Refresher は OAuth トランスポート以外では nil。
	Refresher *mail.Refresher
	// CloseStore はシャットダウン時に一度だけ呼ばれる。
	CloseStore func(ctx context.Context) error
}

// Server は HTTP サーバーのライフサイクルを管理し、ハンドラへ依存注入するコンポジションルート。
type Server struct {
	logger         zerolog.Logger
	addr           string
	allowedOrigins []string
	metricsEnabled bool
	repository     contactapp.SubmissionRepository
	submissions    contactapp.SubmissionService
	refresher      *mail.Refresher
	closeStore     func(ctx context.Context) error
}

// New は Config と依存を受け取り、アプリケーションサービスとハンドラを組み立てた Server を返す。
func New(cfg config.Config, deps Deps) *Server {
	submissions := contactapp.NewSubmissionService(contactapp.ServiceConfig{
		Repository:    deps.Repository,
		Sender:        deps.Sender,
		Policy:        cfg.NotifyPolicy,
		Logger:        deps.Logger,
		StoreTimeout:  cfg.StoreTimeout,
		NotifyTimeout: cfg.NotifyTimeout,
	})

	return &Server{
		logger:         deps.Logger,
		addr:           cfg.Addr,
		allowedOrigins: append([]string(nil), cfg.AllowedOrigins...),
		metricsEnabled: cfg.MetricsEnabled,
		repository:     deps.Repository,
		submissions:    submissions,
		refresher:      deps.Refresher,
		closeStore:     deps.CloseStore,
	}
}

// Handler はルーティングとミドルウェアを組み立てる。
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger(s.logger))
	router.Use(metrics.Middleware)
	router.Use(middleware.Recoverer)
	router.Use(withCORS(s.allowedOrigins))

	router.Get("/readyz", s.readyHandler())
	if s.metricsEnabled {
		router.Handle("/metrics", promhttp.Handler())
	}

	publicHandler := publichttp.NewHandler(publichttp.Config{
		Logger:      s.logger,
		Submissions: s.submissions,
	})
	publicHandler.Register(router)

	return router
}

// Run は HTTP サーバーを起動し、シグナル受信または ctx のキャンセルで graceful shutdown する。
func (s *Server) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	refresherCtx, cancelRefresher := context.WithCancel(ctx)
	refresherDone := make(chan struct{})
	if s.refresher != nil {
		go func() {
			defer close(refresherDone)
			s.refresher.Run(refresherCtx)
		}()
	} else {
		close(refresherDone)
	}

	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.addr).Msg("HTTP server listening")
		errChan <- httpServer.ListenAndServe()
	}()

	err := waitForShutdown(ctx, httpServer, errChan, s.logger)

	cancelRefresher()
	<-refresherDone
	s.shutdown(context.Background())
	return err
}

// waitForShutdown は ListenAndServe の終了とシグナルを監視する。
func waitForShutdown(ctx context.Context, httpServer *http.Server, errChan <-chan error, logger zerolog.Logger) error {
	select {
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		logger.Info().Msg("shutdown requested; draining HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("HTTP server shutdown failed")
			return err
		}
		return nil
	}
}

// shutdown はストア接続をタイムアウト付きで閉じる。
func (s *Server) shutdown(ctx context.Context) {
	if s.closeStore == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.closeStore(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("failed to close store")
	}
}

// readyHandler はストアへの疎通確認を行う。原因はログにのみ出力する。
func (s *Server) readyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := s.repository.Ping(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("store ping failed")
			common.WriteJSON(s.logger, w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
		common.WriteJSON(s.logger, w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// corsOrigins は CORS ヘッダーを返すオリジンの集合。"*" は任意のオリジンを許可する。
type corsOrigins map[string]bool

func newCORSOrigins(origins []string) corsOrigins {
	set := corsOrigins{}
	for _, origin := range origins {
		if origin = strings.TrimSpace(origin); origin != "" {
			set[origin] = true
		}
	}
	return set
}

func (c corsOrigins) allows(origin string) bool {
	return origin != "" && (c["*"] || c[origin])
}

// withCORS は許可オリジンにだけ CORS ヘッダーを付け、プリフライトには常に 204 を返す。
func withCORS(origins []string) func(http.Handler) http.Handler {
	admitted := newCORSOrigins(origins)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := strings.TrimSpace(r.Header.Get("Origin")); admitted.allows(origin) {
				header := w.Header()
				header.Set("Access-Control-Allow-Origin", origin)
				header.Add("Vary", "Origin")
				header.Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
				header.Set("Access-Control-Allow-Headers", "Content-Type")
				header.Set("Access-Control-Max-Age", "300")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
