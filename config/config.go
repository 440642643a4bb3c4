package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds the structure of the configuration
type AppConfig struct {
	SelfPath     string   `json:"selfpath"`
	Port         string   `json:"port"`
	CellSize     float64  `json:"cellsize"`
	Width        float64  `json:"width"`
	Height       float64  `json:"height"`
	IntervalMs   int      `json:"interval_ms"`
	FrameDriven  bool     `json:"frame_driven"` // dt 按实际间隔缩放
	Roster       int      `json:"roster"`
	TrailWindow  int      `json:"trail_window"`
	DSN          string   `json:"dsn"`
	ScenarioPath string   `json:"scenario"` // 为空时使用内置地图
	IconsDir     string   `json:"icons"`
	CORSOrigins  []string `json:"cors_origins"`
}

var (
	instance *AppConfig
	once     sync.Once
)

// Defaults returns the built-in configuration.
func Defaults() *AppConfig {
	return &AppConfig{
		SelfPath:    "http://localhost:38870", // Default value
		Port:        "38870",                  // Default value
		CellSize:    10,
		Width:       800,
		Height:      600,
		IntervalMs:  200,
		Roster:      5,
		TrailWindow: 15,
		DSN:         "file:crumbway?mode=memory&cache=shared",
		IconsDir:    "./icons",
		CORSOrigins: []string{"*"},
	}
}

// LoadConfig initializes and returns the instance of AppConfig
func LoadConfig(filePath string) *AppConfig {
	once.Do(func() {
		cfg, err := Load(filePath)
		if err != nil {
			panic(err)
		}
		instance = cfg
	})
	return instance
}

// Load reads .env, then the JSON file (created with defaults when missing),
// then applies CRUMBWAY_* environment overrides.
func Load(filePath string) (*AppConfig, error) {
	// .env 不存在不算错误
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[WARN] .env: %v", err)
	}

	cfg := Defaults()
	// Load the config file if it exists, otherwise create one
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		if err := saveConfig(filePath, cfg); err != nil {
			return nil, err
		}
	} else if err := loadConfig(filePath, cfg); err != nil {
		return nil, err
	}
	applyEnv(cfg)
	return cfg, nil
}

// loadConfig loads the settings from the file
func loadConfig(filePath string, cfg *AppConfig) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	if err := decoder.Decode(cfg); err != nil {
		return fmt.Errorf("config: decode %s: %w", filePath, err)
	}
	return nil
}

// saveConfig saves the current settings to the file
func saveConfig(filePath string, cfg *AppConfig) error {
	file, err := os.Create(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("config: write %s: %w", filePath, err)
	}
	return nil
}

func applyEnv(cfg *AppConfig) {
	cfg.Port = getEnv("CRUMBWAY_PORT", cfg.Port)
	cfg.SelfPath = getEnv("CRUMBWAY_SELFPATH", cfg.SelfPath)
	cfg.DSN = getEnv("CRUMBWAY_DSN", cfg.DSN)
	cfg.ScenarioPath = getEnv("CRUMBWAY_SCENARIO", cfg.ScenarioPath)
	cfg.IconsDir = getEnv("CRUMBWAY_ICONS", cfg.IconsDir)
	interval := parseDuration(getEnv("CRUMBWAY_INTERVAL", ""), time.Duration(cfg.IntervalMs)*time.Millisecond)
	cfg.IntervalMs = int(interval / time.Millisecond)
	if v, err := strconv.Atoi(getEnv("CRUMBWAY_ROSTER", "")); err == nil && v > 0 {
		cfg.Roster = v
	}
	if v := getEnv("CRUMBWAY_CORS_ORIGINS", ""); v != "" {
		cfg.CORSOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// Interval returns the tick interval.
func (c *AppConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMs) * time.Millisecond
}

// GetConfigValue returns the value of the configuration by key
func GetConfigValue(key string) interface{} {
	switch key {
	case "selfpath":
		return instance.SelfPath
	case "port":
		return instance.Port
	case "cellsize":
		return instance.CellSize
	case "width":
		return instance.Width
	case "height":
		return instance.Height
	case "interval_ms":
		return instance.IntervalMs
	case "frame_driven":
		return instance.FrameDriven
	case "roster":
		return instance.Roster
	case "trail_window":
		return instance.TrailWindow
	case "dsn":
		return instance.DSN
	case "scenario":
		return instance.ScenarioPath
	case "icons":
		return instance.IconsDir
	case "cors_origins":
		return instance.CORSOrigins
	default:
		return ""
	}
}
