package database

import (
	"testing"
	"time"
)

func TestNewConnection(t *testing.T) {
	tests := []struct {
		name      string
		dbURL     string
		wantError bool
	}{
		{
			name:      "empty database URL",
			dbURL:     "",
			wantError: true,
		},
		{
			name:      "invalid database URL",
			dbURL:     "invalid-url",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, err := NewConnection(tt.dbURL)

			if tt.wantError {
				if err == nil {
					t.Errorf("NewConnection() expected error, got nil")
				}
				if db != nil {
					db.Close()
				}
				return
			}

			if err != nil {
				t.Errorf("NewConnection() error = %v", err)
				return
			}

			db.Close()
		})
	}
}

func TestNewConnection_MissingURL(t *testing.T) {
	_, err := NewConnectionWithPool("", DefaultPoolConfig())
	if err != ErrMissingDatabaseURL {
		t.Errorf("expected ErrMissingDatabaseURL, got %v", err)
	}
}

func TestDefaultPoolConfig(t *testing.T) {
	pool := DefaultPoolConfig()

	if pool.MaxIdleConns > pool.MaxOpenConns {
		t.Errorf("idle connections (%d) exceed open connections (%d)", pool.MaxIdleConns, pool.MaxOpenConns)
	}
	if pool.ConnMaxIdleTime > pool.ConnMaxLifetime {
		t.Errorf("idle time %v exceeds lifetime %v", pool.ConnMaxIdleTime, pool.ConnMaxLifetime)
	}
	if pool.ConnMaxLifetime < time.Minute {
		t.Errorf("lifetime %v is too short", pool.ConnMaxLifetime)
	}
}
