package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/paularlott/cli"
)

// Config holds the application configuration
type Config struct {
	DataDir      string `validate:"required"`
	ListenAddr   string `validate:"required"`
	APIAuthToken string
	MCPAuthToken string

	// ClassesFile points to a YAML class hierarchy. Empty uses the built-in one.
	ClassesFile string

	SyncEnabled  bool
	SyncSchedule string `validate:"required_if=SyncEnabled true"`
	SyncWorkers  int    `validate:"min=1,max=64"`
	SyncSource   string `validate:"oneof=snmp file"`
	SyncFileDir  string `validate:"required_if=SyncSource file"`

	SNMPCommunity string
	SNMPPort      int           `validate:"min=1,max=65535"`
	SNMPVersion   string        `validate:"oneof=1 2c"`
	SNMPTimeout   time.Duration `validate:"min=0"`
	SNMPRetries   int           `validate:"min=0,max=10"`

	MetricsEnabled bool
}

const envPrefix = "INVD_"

// Load builds the configuration from defaults and INVD_* environment
// variables. A .env file is loaded into the environment by main beforehand.
func Load() *Config {
	cfg := defaults()

	lookup := func(key string) string {
		return os.Getenv(envPrefix + key)
	}

	cfg.DataDir = coalesce(lookup("DATA_DIR"), cfg.DataDir)
	cfg.ListenAddr = coalesce(lookup("LISTEN_ADDR"), cfg.ListenAddr)
	cfg.APIAuthToken = coalesce(lookup("API_TOKEN"), cfg.APIAuthToken)
	cfg.MCPAuthToken = coalesce(lookup("MCP_TOKEN"), cfg.MCPAuthToken)
	cfg.ClassesFile = coalesce(lookup("CLASSES_FILE"), cfg.ClassesFile)
	cfg.SyncEnabled = parseBool(lookup("SYNC_ENABLED"), cfg.SyncEnabled)
	cfg.SyncSchedule = coalesce(lookup("SYNC_SCHEDULE"), cfg.SyncSchedule)
	cfg.SyncWorkers = parseInt(lookup("SYNC_WORKERS"), cfg.SyncWorkers)
	cfg.SyncSource = coalesce(lookup("SYNC_SOURCE"), cfg.SyncSource)
	cfg.SyncFileDir = coalesce(lookup("SYNC_FILE_DIR"), cfg.SyncFileDir)
	cfg.SNMPCommunity = coalesce(lookup("SNMP_COMMUNITY"), cfg.SNMPCommunity)
	cfg.SNMPPort = parseInt(lookup("SNMP_PORT"), cfg.SNMPPort)
	cfg.SNMPVersion = coalesce(lookup("SNMP_VERSION"), cfg.SNMPVersion)
	cfg.SNMPTimeout = parseDuration(lookup("SNMP_TIMEOUT"), cfg.SNMPTimeout)
	cfg.SNMPRetries = parseInt(lookup("SNMP_RETRIES"), cfg.SNMPRetries)
	cfg.MetricsEnabled = parseBool(lookup("METRICS_ENABLED"), cfg.MetricsEnabled)

	return cfg
}

func defaults() *Config {
	return &Config{
		DataDir:        "./data",
		ListenAddr:     ":8080",
		SyncSchedule:   "@every 6h",
		SyncWorkers:    4,
		SyncSource:     "snmp",
		SNMPCommunity:  "public",
		SNMPPort:       161,
		SNMPVersion:    "2c",
		SNMPTimeout:    5 * time.Second,
		SNMPRetries:    1,
		MetricsEnabled: true,
	}
}

// GetFlags returns the server flags. Flags left at their zero value do not
// override the environment.
func GetFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "data-dir", Usage: "Data directory path"},
		&cli.StringFlag{Name: "listen-addr", Usage: "Server listen address (e.g., :8080)"},
		&cli.StringFlag{Name: "api-token", Usage: "API bearer token or bcrypt hash of it"},
		&cli.StringFlag{Name: "mcp-token", Usage: "MCP bearer token"},
		&cli.StringFlag{Name: "classes-file", Usage: "YAML class hierarchy file (reloaded on change)"},
		&cli.BoolFlag{Name: "sync", Usage: "Enable scheduled device synchronization"},
		&cli.StringFlag{Name: "sync-schedule", Usage: "Cron expression for scheduled sync (e.g., @every 6h)"},
		&cli.IntFlag{Name: "sync-workers", Usage: "Number of concurrent sync workers"},
		&cli.StringFlag{Name: "sync-source", Usage: "Finding source: snmp or file"},
		&cli.StringFlag{Name: "sync-file-dir", Usage: "Directory of entity table dumps for the file source"},
		&cli.StringFlag{Name: "snmp-community", Usage: "Default SNMP community"},
	}
}

// ApplyFlags overrides cfg with any flag explicitly set on cmd.
func (c *Config) ApplyFlags(cmd *cli.Command) {
	c.DataDir = coalesce(cmd.GetString("data-dir"), c.DataDir)
	c.ListenAddr = coalesce(cmd.GetString("listen-addr"), c.ListenAddr)
	c.APIAuthToken = coalesce(cmd.GetString("api-token"), c.APIAuthToken)
	c.MCPAuthToken = coalesce(cmd.GetString("mcp-token"), c.MCPAuthToken)
	c.ClassesFile = coalesce(cmd.GetString("classes-file"), c.ClassesFile)
	if cmd.GetBool("sync") {
		c.SyncEnabled = true
	}
	c.SyncSchedule = coalesce(cmd.GetString("sync-schedule"), c.SyncSchedule)
	if n := cmd.GetInt("sync-workers"); n > 0 {
		c.SyncWorkers = n
	}
	c.SyncSource = coalesce(cmd.GetString("sync-source"), c.SyncSource)
	c.SyncFileDir = coalesce(cmd.GetString("sync-file-dir"), c.SyncFileDir)
	c.SNMPCommunity = coalesce(cmd.GetString("snmp-community"), c.SNMPCommunity)
}

// Validate checks the configuration for inconsistent values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// IsAPIAuthEnabled reports whether API requests need a bearer token
func (c *Config) IsAPIAuthEnabled() bool {
	return c.APIAuthToken != ""
}

// coalesce returns the first non-empty string value
func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func parseBool(s string, def bool) bool {
	if s == "" {
		return def
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return def
	}
	return b
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}
