// Package db provides the embedded orders schema.
package db

import _ "embed"

// Schema contains the DDL for the orders table. Every statement is
// idempotent so it can run on each startup.
//
//go:embed migrations/001_schema.sql
var Schema string
