// Package config loads quillc's configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds the application's configuration.
type Config struct {
	DBPath          string   // archive store DSN: file path or libsql URL
	SourceRoot      string   // directory the source walk starts from
	IncludePatterns []string // doublestar globs selecting sources
	ExcludePatterns []string
	Namespace       string // project namespace for module identities
	Debug           bool
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() *Config {
	cfg := &Config{
		DBPath:     os.Getenv("QUILL_DB_PATH"),
		SourceRoot: os.Getenv("QUILL_SRC_ROOT"),
		Namespace:  os.Getenv("QUILL_NAMESPACE"),
	}

	if cfg.DBPath == "" {
		cfg.DBPath = ".quill/modules.db"
	}
	if cfg.SourceRoot == "" {
		cfg.SourceRoot = "."
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "local"
	}

	cfg.IncludePatterns = splitPatterns(os.Getenv("QUILL_SOURCES"))
	cfg.ExcludePatterns = splitPatterns(os.Getenv("QUILL_EXCLUDE"))

	if debugStr := os.Getenv("QUILL_DEBUG"); debugStr != "" {
		if debug, err := strconv.ParseBool(debugStr); err == nil {
			cfg.Debug = debug
		}
	}

	return cfg
}

func splitPatterns(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
