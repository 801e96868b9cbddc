package core

import (
	"fmt"
	"os"
	"path/filepath"
)

// AtomicWriteConfig controls atomic writing behavior.
type AtomicWriteConfig struct {
	UseFsync   bool   // Force fsync for durability
	TempSuffix string // Suffix for temporary files
}

// DefaultAtomicConfig provides sensible defaults.
func DefaultAtomicConfig() AtomicWriteConfig {
	return AtomicWriteConfig{
		UseFsync:   false,
		TempSuffix: ".quill.tmp",
	}
}

// AtomicWriter writes files through a rename so readers never observe a
// half-written archive or report.
type AtomicWriter struct {
	config AtomicWriteConfig
}

// NewAtomicWriter creates a new atomic writer.
func NewAtomicWriter(config AtomicWriteConfig) *AtomicWriter {
	if config.TempSuffix == "" {
		config.TempSuffix = DefaultAtomicConfig().TempSuffix
	}
	return &AtomicWriter{config: config}
}

// WriteFile atomically writes content to path, creating parent directories.
func (aw *AtomicWriter) WriteFile(path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	fileMode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		fileMode = info.Mode()
	}

	tempPath := path + aw.config.TempSuffix
	tempFile, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, fileMode)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := tempFile.Write(content); err != nil {
		tempFile.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if aw.config.UseFsync {
		if err := tempFile.Sync(); err != nil {
			tempFile.Close()
			os.Remove(tempPath)
			return fmt.Errorf("failed to sync temp file: %w", err)
		}
	}
	if err := tempFile.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
