package config

import (
	"flag"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/dmitrijs2005/ledgermail/internal/flagx"
)

var knownFlags = []string{
	"-source", "-eml", "-slice-size",
	"-imap-host", "-imap-port", "-imap-user", "-imap-tls", "-imap-mailbox", "-imap-uid",
	"-dsn", "-migrate", "-s3-endpoint", "-s3-region",
	"-db", "-downloads", "-clear-delay", "-log-level",
}

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-source eml|imap     where the current message comes from
//	-eml path            .eml file opened at start
//	-slice-size int      bytes per host slice
//	-imap-host, -imap-port, -imap-user, -imap-mailbox, -imap-uid
//	-imap-tls=bool       implicit TLS (false means STARTTLS)
//	-dsn string          document service database DSN
//	-migrate             apply the document service schema at start (dev setups)
//	-s3-endpoint, -s3-region
//	-db path             local settings database
//	-downloads dir       download handle directory
//	-clear-delay int     seconds before a success status clears
//	-log-level string
//
// Arguments other than these are filtered out with flagx.FilterArgs.
func parseFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("ledgermail", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.Source, "source", cfg.Source, "mail source: eml or imap")
	fs.StringVar(&cfg.EMLPath, "eml", cfg.EMLPath, "path of the .eml file to open")
	fs.IntVar(&cfg.SliceSize, "slice-size", cfg.SliceSize, "bytes per slice")
	fs.StringVar(&cfg.IMAP.Host, "imap-host", cfg.IMAP.Host, "IMAP server host")
	fs.IntVar(&cfg.IMAP.Port, "imap-port", cfg.IMAP.Port, "IMAP server port")
	fs.StringVar(&cfg.IMAP.Username, "imap-user", cfg.IMAP.Username, "IMAP user name")
	fs.BoolVar(&cfg.IMAP.TLS, "imap-tls", cfg.IMAP.TLS, "use implicit TLS")
	fs.StringVar(&cfg.IMAP.Mailbox, "imap-mailbox", cfg.IMAP.Mailbox, "IMAP mailbox")
	uid := fs.Uint("imap-uid", uint(cfg.IMAP.UID), "UID of the message")
	fs.StringVar(&cfg.DatabaseDSN, "dsn", cfg.DatabaseDSN, "document service DSN")
	fs.BoolVar(&cfg.MigrateRemote, "migrate", cfg.MigrateRemote, "apply the document service schema")
	fs.StringVar(&cfg.S3.Endpoint, "s3-endpoint", cfg.S3.Endpoint, "object storage endpoint")
	fs.StringVar(&cfg.S3.Region, "s3-region", cfg.S3.Region, "object storage region")
	fs.StringVar(&cfg.LocalDBPath, "db", cfg.LocalDBPath, "local settings database")
	fs.StringVar(&cfg.DownloadDir, "downloads", cfg.DownloadDir, "download directory")
	clearDelay := fs.Int("clear-delay", int(cfg.StatusClearDelay.Seconds()), "seconds before a success status clears")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")

	if err := fs.Parse(flagx.FilterArgs(args, knownFlags)); err != nil {
		return err
	}

	if *uid > math.MaxUint32 {
		return fmt.Errorf("imap uid %d out of range", *uid)
	}
	cfg.IMAP.UID = uint32(*uid)
	cfg.StatusClearDelay = time.Duration(*clearDelay) * time.Second
	return nil
}
