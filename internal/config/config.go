package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `yaml:"server" json:"server"`

	// Database configuration
	Database DatabaseConfig `yaml:"database" json:"database"`

	// Vault configuration
	Vault VaultConfig `yaml:"vault" json:"vault"`

	// Wall configuration
	Wall WallConfig `yaml:"wall" json:"wall"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Host           string        `yaml:"host" json:"host" env:"MEDIAWALL_HOST" default:"0.0.0.0"`
	Port           int           `yaml:"port" json:"port" env:"MEDIAWALL_PORT" default:"8080"`
	ReadTimeout    time.Duration `yaml:"read_timeout" json:"read_timeout" env:"MEDIAWALL_READ_TIMEOUT" default:"30s"`
	WriteTimeout   time.Duration `yaml:"write_timeout" json:"write_timeout" env:"MEDIAWALL_WRITE_TIMEOUT" default:"30s"`
	MaxHeaderBytes int           `yaml:"max_header_bytes" json:"max_header_bytes" env:"MEDIAWALL_MAX_HEADER_BYTES" default:"1048576"`
	EnableCORS     bool          `yaml:"enable_cors" json:"enable_cors" env:"MEDIAWALL_ENABLE_CORS" default:"true"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Type            string        `yaml:"type" json:"type" env:"DATABASE_TYPE" default:"sqlite"`
	Host            string        `yaml:"host" json:"host" env:"POSTGRES_HOST" default:"localhost"`
	Port            int           `yaml:"port" json:"port" env:"POSTGRES_PORT" default:"5432"`
	Username        string        `yaml:"username" json:"username" env:"POSTGRES_USER" default:"mediawall"`
	Password        string        `yaml:"password" json:"-" env:"POSTGRES_PASSWORD"`
	Database        string        `yaml:"database" json:"database" env:"POSTGRES_DB" default:"mediawall"`
	DataDir         string        `yaml:"data_dir" json:"data_dir" env:"MEDIAWALL_DATA_DIR" default:"./data"`
	DatabasePath    string        `yaml:"database_path" json:"database_path" env:"MEDIAWALL_DATABASE_PATH"`
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns" env:"DB_MAX_OPEN_CONNS" default:"50"`
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns" env:"DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME" default:"2h"`
	LogQueries      bool          `yaml:"log_queries" json:"log_queries" env:"DB_LOG_QUERIES" default:"false"`
}

// VaultConfig holds media vault configuration
type VaultConfig struct {
	Roots          []string      `yaml:"roots" json:"roots" env:"MEDIAWALL_VAULT_ROOTS"`
	WatchEnabled   bool          `yaml:"watch_enabled" json:"watch_enabled" env:"MEDIAWALL_VAULT_WATCH" default:"true"`
	DebounceWindow time.Duration `yaml:"debounce_window" json:"debounce_window" env:"MEDIAWALL_VAULT_DEBOUNCE" default:"2s"`
	IgnorePatterns []string      `yaml:"ignore_patterns" json:"ignore_patterns" env:"MEDIAWALL_VAULT_IGNORE"`
}

// WallConfig holds wall behavior configuration
type WallConfig struct {
	TileCount           int           `yaml:"tile_count" json:"tile_count" env:"MEDIAWALL_TILE_COUNT" default:"9"`
	LayoutMode          string        `yaml:"layout_mode" json:"layout_mode" env:"MEDIAWALL_LAYOUT_MODE" default:"mosaic"`
	DecoderSlots        int           `yaml:"decoder_slots" json:"decoder_slots" env:"MEDIAWALL_DECODER_SLOTS" default:"12"`
	PreviewDecoderSlots int           `yaml:"preview_decoder_slots" json:"preview_decoder_slots" env:"MEDIAWALL_PREVIEW_DECODER_SLOTS" default:"6"`
	PoolSize            int           `yaml:"pool_size" json:"pool_size" env:"MEDIAWALL_POOL_SIZE" default:"200"`
	StaggerStep         time.Duration `yaml:"stagger_step" json:"stagger_step" env:"MEDIAWALL_STAGGER_STEP" default:"100ms"`
	Muted               bool          `yaml:"muted" json:"muted" env:"MEDIAWALL_MUTED" default:"true"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level" json:"level" env:"MEDIAWALL_LOG_LEVEL" default:"info"`
	Format       string `yaml:"format" json:"format" env:"MEDIAWALL_LOG_FORMAT" default:"text"`
	EnableColors bool   `yaml:"enable_colors" json:"enable_colors" env:"MEDIAWALL_LOG_COLORS" default:"true"`
}

// ConfigManager manages application configuration
type ConfigManager struct {
	config     *Config
	configPath string
	mu         sync.RWMutex
}

var (
	globalConfigManager *ConfigManager
	configOnce          sync.Once
)

// GetConfigManager returns the global configuration manager instance
func GetConfigManager() *ConfigManager {
	configOnce.Do(func() {
		globalConfigManager = NewConfigManager()
	})
	return globalConfigManager
}

// NewConfigManager creates a new configuration manager
func NewConfigManager() *ConfigManager {
	return &ConfigManager{
		config: DefaultConfig(),
	}
}

// DefaultConfig returns the default application configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   30 * time.Second,
			MaxHeaderBytes: 1 << 20, // 1MB
			EnableCORS:     true,
		},
		Database: DatabaseConfig{
			Type:            "sqlite",
			DataDir:         "./data",
			MaxOpenConns:    50,
			MaxIdleConns:    10,
			ConnMaxLifetime: 2 * time.Hour,
			LogQueries:      false,
		},
		Vault: VaultConfig{
			Roots:          []string{},
			WatchEnabled:   true,
			DebounceWindow: 2 * time.Second,
			IgnorePatterns: []string{".*", "Thumbs.db", ".DS_Store"},
		},
		Wall: WallConfig{
			TileCount:           9,
			LayoutMode:          "mosaic",
			DecoderSlots:        12,
			PreviewDecoderSlots: 6,
			PoolSize:            200,
			StaggerStep:         100 * time.Millisecond,
			Muted:               true,
		},
		Logging: LoggingConfig{
			Level:        "info",
			Format:       "text",
			EnableColors: true,
		},
	}
}

// LoadConfig loads configuration from file and environment variables
func (cm *ConfigManager) LoadConfig(configPath string) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.configPath = configPath

	// Start with default configuration
	newConfig := DefaultConfig()

	// Load from file if it exists
	if configPath != "" && fileExists(configPath) {
		if err := cm.loadFromFile(configPath, newConfig); err != nil {
			return fmt.Errorf("failed to load config from file: %w", err)
		}
		log.Printf("✅ Configuration loaded from file: %s", configPath)
	}

	// Override with environment variables
	if err := loadStructFromEnv(reflect.ValueOf(newConfig).Elem()); err != nil {
		return fmt.Errorf("failed to load config from environment: %w", err)
	}

	// Validate configuration
	if err := validateConfig(newConfig); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	applyDerivedConfig(newConfig)

	cm.config = newConfig
	return nil
}

// GetConfig returns the current configuration (thread-safe)
func (cm *ConfigManager) GetConfig() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	// Return a copy to prevent external modifications
	configCopy := *cm.config
	return &configCopy
}

func (cm *ConfigManager) loadFromFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, config)
	case ".json":
		return json.Unmarshal(data, config)
	default:
		return fmt.Errorf("unsupported config file format: %s", ext)
	}
}

func loadStructFromEnv(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.CanSet() {
			continue
		}

		// Handle nested structs recursively
		if field.Kind() == reflect.Struct && field.Type() != reflect.TypeOf(time.Duration(0)) {
			if err := loadStructFromEnv(field); err != nil {
				return err
			}
			continue
		}

		envTag := fieldType.Tag.Get("env")
		if envTag == "" {
			continue
		}

		envValue := os.Getenv(envTag)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set field %s: %w", fieldType.Name, err)
		}
	}

	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			duration, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(duration))
		} else {
			intVal, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(intVal)
		}
	case reflect.Float32, reflect.Float64:
		floatVal, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(floatVal)
	case reflect.Bool:
		boolVal, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(boolVal)
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			values := strings.Split(value, ",")
			for i, v := range values {
				values[i] = strings.TrimSpace(v)
			}
			field.Set(reflect.ValueOf(values))
		}
	default:
		return fmt.Errorf("unsupported field type: %v", field.Kind())
	}

	return nil
}

func validateConfig(config *Config) error {
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Database.Type != "sqlite" && config.Database.Type != "postgres" {
		return fmt.Errorf("unsupported database type: %s", config.Database.Type)
	}

	if config.Wall.LayoutMode != "mosaic" && config.Wall.LayoutMode != "grid" {
		return fmt.Errorf("unsupported layout mode: %s", config.Wall.LayoutMode)
	}

	if config.Wall.TileCount < 2 || config.Wall.TileCount > 30 {
		return fmt.Errorf("tile count out of range: %d", config.Wall.TileCount)
	}

	if config.Wall.DecoderSlots < 1 || config.Wall.PreviewDecoderSlots < 1 {
		return fmt.Errorf("decoder slot counts must be positive")
	}

	return nil
}

func applyDerivedConfig(config *Config) {
	// Set derived database path if not explicitly set
	if config.Database.DatabasePath == "" && config.Database.Type == "sqlite" {
		config.Database.DatabasePath = filepath.Join(config.Database.DataDir, "mediawall.db")
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Global convenience functions

// Get returns the current global configuration
func Get() *Config {
	return GetConfigManager().GetConfig()
}

// Load loads configuration from the specified path
func Load(configPath string) error {
	return GetConfigManager().LoadConfig(configPath)
}
