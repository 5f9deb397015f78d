package server

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"unit-preferences/internal/config"
)

func TestNew_Defaults(t *testing.T) {
	srv := New("8080", nil, http.NotFoundHandler())

	assert.Equal(t, ":8080", srv.Addr)
	assert.Equal(t, defaultReadTimeout, srv.ReadTimeout)
	assert.Equal(t, defaultWriteTimeout, srv.WriteTimeout)
	assert.Equal(t, defaultIdleTimeout, srv.IdleTimeout)
}

func TestNew_ConfiguredTimeouts(t *testing.T) {
	srv := New("9090", &config.ServerConfig{
		ReadTimeout: 5 * time.Second,
		IdleTimeout: 90 * time.Second,
	}, http.NotFoundHandler())

	assert.Equal(t, ":9090", srv.Addr)
	assert.Equal(t, 5*time.Second, srv.ReadTimeout)
	assert.Equal(t, defaultWriteTimeout, srv.WriteTimeout)
	assert.Equal(t, 90*time.Second, srv.IdleTimeout)
}
