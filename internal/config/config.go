// Package config provides YAML-based configuration for the battery
// insight server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// AppConfig represents the root configuration structure
type AppConfig struct {
	// Server configuration
	Server ServerConfig `yaml:"server"`

	// Storage configuration
	Storage StorageConfig `yaml:"storage"`

	// Processing configuration
	Processing ProcessingConfig `yaml:"processing"`

	// Analysis configuration
	Analysis AnalysisConfig `yaml:"analysis"`

	// Ingest configuration
	Ingest IngestConfig `yaml:"ingest"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int    `yaml:"port"`
	BindAddress  string `yaml:"bindAddress"`
	EnableCORS   bool   `yaml:"enableCors"`
	AllowOrigins string `yaml:"allowOrigins"`
	ReadTimeout  int    `yaml:"readTimeoutSeconds"`
	WriteTimeout int    `yaml:"writeTimeoutSeconds"`
	IdleTimeout  int    `yaml:"idleTimeoutSeconds"`
	BodyLimit    string `yaml:"bodyLimit"`
}

// StorageConfig contains file storage settings
type StorageConfig struct {
	DataDirectory    string `yaml:"dataDirectory"`
	UploadsDirectory string `yaml:"uploadsDirectory"`
	ArchiveFile      string `yaml:"archiveFile"`
	MaxUploadSize    string `yaml:"maxUploadSize"`
}

// ProcessingConfig contains parsing and session settings
type ProcessingConfig struct {
	MaxSessions            int `yaml:"maxSessions"`
	SessionTimeoutMinutes  int `yaml:"sessionTimeoutMinutes"`
	CleanupIntervalMinutes int `yaml:"cleanupIntervalMinutes"`
}

// AnalysisConfig tunes the report analysis defaults.
type AnalysisConfig struct {
	// DesignCapacityMAh turns the dump's stated capacity into a battery
	// health percentage. Zero disables the estimate.
	DesignCapacityMAh float64 `yaml:"designCapacityMAh"`

	// DrainTolerance is the relative slack allowed between the summed
	// per-app drain and the dump's stated total before it is flagged.
	DrainTolerance float64 `yaml:"drainTolerance"`

	// ArchiveThreads and ArchiveMemoryLimit tune the trend archive's
	// DuckDB instance.
	ArchiveThreads     int    `yaml:"archiveThreads"`
	ArchiveMemoryLimit string `yaml:"archiveMemoryLimit"`
}

// IngestConfig controls the directory watcher for dropped-in dumps.
type IngestConfig struct {
	Enabled        bool   `yaml:"enabled"`
	WatchDirectory string `yaml:"watchDirectory"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         8089,
			BindAddress:  "0.0.0.0",
			EnableCORS:   true,
			AllowOrigins: "*",
			ReadTimeout:  30,
			WriteTimeout: 30,
			IdleTimeout:  120,
			BodyLimit:    "256M",
		},
		Storage: StorageConfig{
			DataDirectory:    "./data",
			UploadsDirectory: "./data/uploads",
			ArchiveFile:      "./data/trends.duckdb",
			MaxUploadSize:    "256M",
		},
		Processing: ProcessingConfig{
			MaxSessions:            100,
			SessionTimeoutMinutes:  30,
			CleanupIntervalMinutes: 5,
		},
		Analysis: AnalysisConfig{
			DesignCapacityMAh:  0,
			DrainTolerance:     0.10,
			ArchiveThreads:     4,
			ArchiveMemoryLimit: "512MB",
		},
		Ingest: IngestConfig{
			Enabled:        false,
			WatchDirectory: "./data/incoming",
		},
	}
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(configPath string) (*AppConfig, error) {
	// If file doesn't exist, create default
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		config := DefaultConfig()
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply environment variable overrides
	config.applyEnvironmentOverrides()

	// Resolve relative paths
	config.resolvePaths(filepath.Dir(configPath))

	return config, nil
}

// Save saves the configuration to a YAML file
func (c *AppConfig) Save(configPath string) error {
	output, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte("# Battery Insight configuration\n# This file is auto-generated on first run\n\n")
	content := append(header, output...)

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	// PORT override
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	// DATA_DIR override
	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.Storage.DataDirectory = dataDir
	}

	// INGEST_DIR override
	if ingestDir := os.Getenv("INGEST_DIR"); ingestDir != "" {
		c.Ingest.WatchDirectory = ingestDir
		c.Ingest.Enabled = true
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	if !filepath.IsAbs(c.Storage.DataDirectory) {
		c.Storage.DataDirectory = filepath.Join(configDir, c.Storage.DataDirectory)
	}
	if !filepath.IsAbs(c.Storage.UploadsDirectory) {
		c.Storage.UploadsDirectory = filepath.Join(configDir, c.Storage.UploadsDirectory)
	}
	if !filepath.IsAbs(c.Storage.ArchiveFile) {
		c.Storage.ArchiveFile = filepath.Join(configDir, c.Storage.ArchiveFile)
	}
	if !filepath.IsAbs(c.Ingest.WatchDirectory) {
		c.Ingest.WatchDirectory = filepath.Join(configDir, c.Ingest.WatchDirectory)
	}
}

// GetDataDir returns the absolute data directory path
func (c *AppConfig) GetDataDir() string {
	return c.Storage.DataDirectory
}

// GetUploadDir returns the absolute uploads directory path
func (c *AppConfig) GetUploadDir() string {
	return c.Storage.UploadsDirectory
}

// GetArchivePath returns the absolute trend archive database path
func (c *AppConfig) GetArchivePath() string {
	return c.Storage.ArchiveFile
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.UploadsDirectory,
		filepath.Dir(c.Storage.ArchiveFile),
	}
	if c.Ingest.Enabled {
		dirs = append(dirs, c.Ingest.WatchDirectory)
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
