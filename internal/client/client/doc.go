// Package client talks to the remote document service.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic contract for the service (see Remote and Storage):
//     organization listing, filtered table selects, the attachment tree RPC,
//     metadata inserts and object uploads.
//  2. A Postgres implementation (see Postgres) over database/sql with the pgx
//     driver. Every call runs in its own transaction that first publishes the
//     caller's JWT claims as request.jwt.claims so row-level security applies.
//  3. An S3 implementation of Storage (see S3Storage) for the attachment
//     buckets, compatible with path-style endpoints such as MinIO.
//  4. Embedded goose migrations that bootstrap the remote schema for
//     development and tests (see MigrateRemote).
//
// # Error Handling
//
// Every failure returned by the service is tagged common.KindRemoteCallFailed
// with the server message preserved. Authentication and connectivity problems
// additionally match ErrUnauthorized and ErrUnavailable.
package client
