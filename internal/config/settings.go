// Package config resolves run settings and header-mapping overrides.
// Precedence is flags over environment over defaults; flag handling
// lives in the commands, so this package only overlays environment
// values onto whatever the flags left empty.
package config

import (
	"errors"
	"os"
	"strings"
	"time"
)

// Environment variable names for the graph store connection.
const (
	EnvURI      = "NEO4J_URI"
	EnvUser     = "NEO4J_USER"
	EnvPassword = "NEO4J_PASSWORD"
	EnvDatabase = "NEO4J_DATABASE"
)

// ErrNoTarget is returned when a run has nowhere to write.
var ErrNoTarget = errors.New("no graph store configured: set --uri (or NEO4J_URI), --sqlite, or --dry-run")

// Settings is the resolved connection and write configuration of one
// run.
type Settings struct {
	URI      string
	User     string
	Password string
	Database string
	Timeout  time.Duration

	SQLitePath string
	DryRun     bool
}

// WithEnv fills connection fields the flags left empty from the
// environment and returns the result.
func (s Settings) WithEnv() Settings {
	if s.URI == "" {
		s.URI = strings.TrimSpace(os.Getenv(EnvURI))
	}
	if s.User == "" {
		s.User = strings.TrimSpace(os.Getenv(EnvUser))
	}
	if s.Password == "" {
		s.Password = os.Getenv(EnvPassword)
	}
	if s.Database == "" {
		s.Database = strings.TrimSpace(os.Getenv(EnvDatabase))
	}
	return s
}

// Validate checks that the run has a write target.
func (s Settings) Validate() error {
	if s.URI == "" && s.SQLitePath == "" && !s.DryRun {
		return ErrNoTarget
	}
	return nil
}
