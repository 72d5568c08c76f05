// Copyright 2026 The Spool Authors
// SPDX-License-Identifier: Apache-2.0

package reporter

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression is a request body encoding for the HTTP exporter.
type Compression string

const (
	// CompressionNone sends bodies uncompressed.
	CompressionNone Compression = "none"
	// CompressionGzip uses gzip.
	CompressionGzip Compression = "gzip"
	// CompressionZstd uses zstd.
	CompressionZstd Compression = "zstd"
	// CompressionLZ4 uses lz4.
	CompressionLZ4 Compression = "lz4"
)

// ParseCompression parses a compression name from configuration.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return CompressionNone, nil
	case "gzip":
		return CompressionGzip, nil
	case "zstd":
		return CompressionZstd, nil
	case "lz4":
		return CompressionLZ4, nil
	default:
		return CompressionNone, fmt.Errorf("unsupported compression type: %s", s)
	}
}

// ContentEncoding returns the HTTP Content-Encoding header value, or
// "" for no compression.
func (c Compression) ContentEncoding() string {
	switch c {
	case CompressionGzip:
		return "gzip"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return ""
	}
}

// Compress encodes data with the given compression. CompressionNone
// returns the input unchanged.
func Compress(data []byte, compression Compression) ([]byte, error) {
	if compression == CompressionNone || compression == "" {
		return data, nil
	}

	var buf bytes.Buffer
	var err error
	switch compression {
	case CompressionGzip:
		err = compressGzip(&buf, data)
	case CompressionZstd:
		err = compressZstd(&buf, data)
	case CompressionLZ4:
		err = compressLZ4(&buf, data)
	default:
		return nil, fmt.Errorf("unsupported compression type: %s", compression)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress. Used by tests to verify wire bodies.
func Decompress(data []byte, compression Compression) ([]byte, error) {
	switch compression {
	case CompressionNone, "":
		return data, nil
	case CompressionGzip:
		reader, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		defer reader.Close()
		return io.ReadAll(reader)
	case CompressionZstd:
		decoder, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("create zstd decoder: %w", err)
		}
		defer decoder.Close()
		return io.ReadAll(decoder)
	case CompressionLZ4:
		return io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
	default:
		return nil, fmt.Errorf("unsupported compression type: %s", compression)
	}
}

func compressGzip(w io.Writer, data []byte) error {
	writer := gzip.NewWriter(w)
	if _, err := writer.Write(data); err != nil {
		return fmt.Errorf("write gzip data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close gzip writer: %w", err)
	}
	return nil
}

func compressZstd(w io.Writer, data []byte) error {
	encoder, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("create zstd encoder: %w", err)
	}
	if _, err := encoder.Write(data); err != nil {
		return fmt.Errorf("write zstd data: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("close zstd encoder: %w", err)
	}
	return nil
}

func compressLZ4(w io.Writer, data []byte) error {
	writer := lz4.NewWriter(w)
	if _, err := writer.Write(data); err != nil {
		return fmt.Errorf("write lz4 data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close lz4 writer: %w", err)
	}
	return nil
}
