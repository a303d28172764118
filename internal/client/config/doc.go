// Package config loads runtime configuration for the ledgermail CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional config file (JSON or YAML, by extension) selected via -c or
//     -config, plus environment variables with the LEDGERMAIL_ prefix
//     (nested keys use "_", e.g. LEDGERMAIL_IMAP_HOST). Both are read with viper.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// # File schema
//
//	source: imap
//	slice_size: 65536
//	imap:
//	  host: imap.example.com
//	  username: anna@example.com
//	  uid: 4711
//	database_dsn: postgres://app@db/ledger
//	s3:
//	  endpoint: http://127.0.0.1:9000
//	  region: us-east-1
//	status_clear_delay: 7s
//
// Secrets (IMAP password, access token) may also come from the OS keyring;
// see the credential package.
package config
