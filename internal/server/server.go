package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"filevault/internal/config"
	"filevault/internal/objects"
)

const (
	allowRemoteEnvKey      = "FILEVAULT_ALLOW_REMOTE"
	readHeaderTimeout      = 5 * time.Second
	readTimeout            = 5 * time.Minute
	writeTimeout           = 5 * time.Minute
	idleTimeout            = 60 * time.Second
	shutdownTimeout        = 10 * time.Second
	uploadConcurrencyLimit = 4
	imageConcurrencyLimit  = 8
	sweepConcurrencyLimit  = 1
)

// Options configures the HTTP surface.
type Options struct {
	AdminTokenHash     string
	MaxUploadBytes     int64
	MultipartMaxMemory int64
}

// OptionsFromConfig extracts server options from cfg.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		AdminTokenHash:     strings.TrimSpace(cfg.AdminTokenHash),
		MaxUploadBytes:     cfg.Uploads.MaxUploadBytes,
		MultipartMaxMemory: cfg.Uploads.MultipartMaxMemory,
	}
}

// Server wraps HTTP handlers for the filevault API.
type Server struct {
	addr          string
	service       *objects.Service
	sweeper       *objects.Sweeper
	opts          Options
	logger        *slog.Logger
	uploadLimiter chan struct{}
	imageLimiter  chan struct{}
	sweepLimiter  chan struct{}
}

// New creates a new server instance.
func New(addr string, service *objects.Service, sweeper *objects.Sweeper, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = config.DefaultUploadMaxBytes
	}
	if opts.MultipartMaxMemory <= 0 {
		opts.MultipartMaxMemory = config.DefaultUploadMultipartMemory
	}

	return &Server{
		addr:          addr,
		service:       service,
		sweeper:       sweeper,
		opts:          opts,
		logger:        logger,
		uploadLimiter: make(chan struct{}, uploadConcurrencyLimit),
		imageLimiter:  make(chan struct{}, imageConcurrencyLimit),
		sweepLimiter:  make(chan struct{}, sweepConcurrencyLimit),
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.routes()
}

// Run serves HTTP until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.log().Info("starting server", "addr", s.addr)
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log().Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// ListenAddr converts a base API URL into a listen address.
func ListenAddr(apiURL string) (string, error) {
	if apiURL == "" {
		return "", fmt.Errorf("api url is required")
	}
	if u, err := url.Parse(apiURL); err == nil && u.Host != "" {
		host := u.Hostname()
		if !isAllowedListenHost(host) {
			return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
		}
		return u.Host, nil
	}

	host, _, err := net.SplitHostPort(apiURL)
	if err == nil && !isAllowedListenHost(host) {
		return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
	}

	return apiURL, nil
}

func isAllowedListenHost(host string) bool {
	if host == "" {
		return true
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv(allowRemoteEnvKey)), "true") {
		return true
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (s *Server) acquireLimiter(limiter chan struct{}, w http.ResponseWriter, r *http.Request, name string) bool {
	if limiter == nil {
		return true
	}
	select {
	case limiter <- struct{}{}:
		return true
	default:
		err := apiError{
			status:  http.StatusTooManyRequests,
			code:    "resource_exhausted",
			errCode: ErrCodeResourceExhausted,
			err:     fmt.Errorf("too many concurrent %s requests", name),
		}
		s.writeErrorReq(w, r, http.StatusTooManyRequests, err)
		return false
	}
}

func (s *Server) log() *slog.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

func (s *Server) releaseLimiter(limiter chan struct{}) {
	if limiter == nil {
		return
	}
	select {
	case <-limiter:
	default:
	}
}
