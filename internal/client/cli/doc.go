// Package cli provides the interactive ledgermail command-line panel.
//
// It wires configuration, the host mail source (a local .eml file or an IMAP
// message), the document service (Postgres tables and S3 buckets), local
// settings and the OS keyring, and runs a REPL over the controller.
//
// Typical flow:
//
//	open message.eml
//	login <access token>
//	org 1
//	type client
//	recent
//	pick 2
//	folder 1
//	upload
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See runREPL for the command list.
package cli
