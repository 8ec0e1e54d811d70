// Package config provides JSON-file configuration management for the
// search service: bind address, store path, and default query behavior.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Config holds all service configuration.
type Config struct {
	Server ServerConfig `json:"server"`
	Store  StoreConfig  `json:"store"`
	Query  QueryConfig  `json:"query"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Bind       string `json:"bind"` // bind address (e.g., "0.0.0.0", "::", "127.0.0.1")
	Port       int    `json:"port"`
	AdminToken string `json:"admin_token"` // bcrypt hash of the bearer token mutating endpoints require
}

// StoreConfig holds the external persistence configuration.
type StoreConfig struct {
	DBPath string `json:"db_path"`
}

// QueryConfig holds defaults applied to the query surface.
type QueryConfig struct {
	DefaultLimit int `json:"default_limit"`
	MaxLimit     int `json:"max_limit"`
}

// Manager manages loading, saving, and hot-reading configuration.
type Manager struct {
	configPath string
	config     *Config
	mu         sync.RWMutex
}

// NewManager creates a Manager for the given config file path.
func NewManager(configPath string) *Manager {
	return &Manager{configPath: configPath}
}

// Default returns a Config populated with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Store: StoreConfig{
			DBPath: "iqdb.db",
		},
		Query: QueryConfig{
			DefaultLimit: 20,
			MaxLimit:     100,
		},
	}
}

// Load reads the config file from disk. If the file does not exist it
// initializes with default values and saves them.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			m.config = Default()
			return m.saveLocked()
		}
		return fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	m.config = cfg
	return nil
}

// Save writes the current config to disk.
func (m *Manager) Save() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saveLocked()
}

func (m *Manager) saveLocked() error {
	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(m.configPath, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return *m.config
}
