package server

import (
	"net/http"
	"time"

	"unit-preferences/internal/config"
)

const (
	defaultReadTimeout  = 15 * time.Second
	defaultWriteTimeout = 15 * time.Second
	defaultIdleTimeout  = 60 * time.Second
)

// New builds the HTTP server; zero timeouts in cfg fall back to defaults
func New(port string, cfg *config.ServerConfig, handler http.Handler) *http.Server {
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      handler,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		IdleTimeout:  defaultIdleTimeout,
	}

	if cfg == nil {
		return srv
	}
	if cfg.ReadTimeout > 0 {
		srv.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		srv.WriteTimeout = cfg.WriteTimeout
	}
	if cfg.IdleTimeout > 0 {
		srv.IdleTimeout = cfg.IdleTimeout
	}
	return srv
}
