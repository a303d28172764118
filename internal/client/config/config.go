package config

import (
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/ledgermail/internal/client/host"
	"github.com/dmitrijs2005/ledgermail/internal/client/services"
)

// Mail sources.
const (
	SourceEML  = "eml"
	SourceIMAP = "imap"
)

// IMAPConfig selects the message to work on in an IMAP mailbox.
type IMAPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	TLS      bool   `mapstructure:"tls"`
	Mailbox  string `mapstructure:"mailbox"`
	UID      uint32 `mapstructure:"uid"`
}

// S3Config addresses the object storage holding the attachment buckets.
type S3Config struct {
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

// Config holds runtime settings for the ledgermail CLI.
type Config struct {
	Source    string     `mapstructure:"source"`
	EMLPath   string     `mapstructure:"eml_path"`
	SliceSize int        `mapstructure:"slice_size"`
	IMAP      IMAPConfig `mapstructure:"imap"`

	DatabaseDSN   string   `mapstructure:"database_dsn"`
	MigrateRemote bool     `mapstructure:"migrate_remote"`
	S3            S3Config `mapstructure:"s3"`
	AccessToken   string   `mapstructure:"access_token"`

	LocalDBPath      string        `mapstructure:"local_db_path"`
	DownloadDir      string        `mapstructure:"download_dir"`
	ListLimit        int           `mapstructure:"list_limit"`
	TreeLimit        int           `mapstructure:"tree_limit"`
	StatusClearDelay time.Duration `mapstructure:"status_clear_delay"`
	LogLevel         string        `mapstructure:"log_level"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.Source = SourceEML
	c.SliceSize = host.DefaultSliceSize
	c.IMAP = IMAPConfig{TLS: true, Mailbox: "INBOX"}
	c.DatabaseDSN = "postgres://postgres@127.0.0.1:5432/ledger?sslmode=disable"
	c.S3 = S3Config{Region: "us-east-1"}
	c.LocalDBPath = "ledgermail.db"
	c.DownloadDir = "downloads"
	c.ListLimit = services.DefaultListLimit
	c.TreeLimit = services.DefaultTreeLimit
	c.StatusClearDelay = 7 * time.Second
	c.LogLevel = "info"
}

// Validate rejects settings no component can work with.
func (c *Config) Validate() error {
	switch c.Source {
	case SourceEML, SourceIMAP:
	default:
		return fmt.Errorf("unknown source %q (want %s or %s)", c.Source, SourceEML, SourceIMAP)
	}
	if c.SliceSize <= 0 {
		return fmt.Errorf("slice size must be positive, got %d", c.SliceSize)
	}
	if c.ListLimit <= 0 || c.TreeLimit <= 0 {
		return fmt.Errorf("list and tree limits must be positive")
	}
	return nil
}

// LoadConfig constructs a Config, applies defaults, then overlays the config
// file and environment, then command-line flags. Later sources take
// precedence over earlier ones.
func LoadConfig() (*Config, error) {
	return load(os.Args[1:])
}

func load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseFile(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
