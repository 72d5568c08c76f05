// Copyright 2026 The Spool Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers for spool
// binaries: fatal error reporting to stderr before the structured
// logger exists, and re-execution of the daemon as a detached worker
// in its own session.
package process
