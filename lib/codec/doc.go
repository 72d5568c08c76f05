// Copyright 2026 The Spool Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides spool's standard CBOR encoding configuration.
//
// CBOR is the serialization format for everything that crosses the
// producer socket: telemetry frames, announcements, and any future
// control payloads. This package provides the shared encoding and
// decoding modes so that every spool package encodes identically
// without duplicating configuration. The encoder uses Core
// Deterministic Encoding (RFC 8949 §4.2): sorted map keys, smallest
// integer encoding, no indefinite-length items.
//
// For buffer-oriented operations (frame payloads):
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations:
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
package codec
