package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/dmitrijs2005/ledgermail/internal/flagx"
)

const envPrefix = "LEDGERMAIL"

// parseFile overlays cfg with the config file named by -c/-config and with
// LEDGERMAIL_* environment variables. The current values of cfg serve as
// viper defaults, so keys missing from both sources keep them.
func parseFile(cfg *Config, args []string) error {
	v := viper.New()
	setDefaults(v, cfg)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := flagx.ConfigFileFlag(args); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper, c *Config) {
	v.SetDefault("source", c.Source)
	v.SetDefault("eml_path", c.EMLPath)
	v.SetDefault("slice_size", c.SliceSize)

	v.SetDefault("imap.host", c.IMAP.Host)
	v.SetDefault("imap.port", c.IMAP.Port)
	v.SetDefault("imap.username", c.IMAP.Username)
	v.SetDefault("imap.password", c.IMAP.Password)
	v.SetDefault("imap.tls", c.IMAP.TLS)
	v.SetDefault("imap.mailbox", c.IMAP.Mailbox)
	v.SetDefault("imap.uid", c.IMAP.UID)

	v.SetDefault("database_dsn", c.DatabaseDSN)
	v.SetDefault("migrate_remote", c.MigrateRemote)
	v.SetDefault("s3.region", c.S3.Region)
	v.SetDefault("s3.endpoint", c.S3.Endpoint)
	v.SetDefault("s3.access_key", c.S3.AccessKey)
	v.SetDefault("s3.secret_key", c.S3.SecretKey)
	v.SetDefault("access_token", c.AccessToken)

	v.SetDefault("local_db_path", c.LocalDBPath)
	v.SetDefault("download_dir", c.DownloadDir)
	v.SetDefault("list_limit", c.ListLimit)
	v.SetDefault("tree_limit", c.TreeLimit)
	v.SetDefault("status_clear_delay", c.StatusClearDelay)
	v.SetDefault("log_level", c.LogLevel)
}
