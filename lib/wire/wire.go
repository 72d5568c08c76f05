// Copyright 2026 The Spool Authors
// SPDX-License-Identifier: Apache-2.0

// Package wire implements the producer socket protocol: framed binary
// messages, one telemetry batch per frame, written by short-lived
// producer processes and decoded by the daemon.
//
// Each frame is a 5-byte header (1 byte item kind + 4 byte big-endian
// payload length) followed by a CBOR payload. The kind byte selects
// the payload schema, so a frame decodes in one pass without an
// envelope. A connection carries any number of frames; the producer
// closing its end is normal end-of-stream.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/spool-works/spool/lib/codec"
	"github.com/spool-works/spool/lib/telemetry"
)

// Frame kind constants. The values match telemetry.ItemKind so the
// header byte converts directly.
const (
	// KindSegment frames carry one CBOR-encoded telemetry.Segment.
	KindSegment byte = 0x01

	// KindMetrics frames carry one CBOR-encoded telemetry.MetricBatch.
	KindMetrics byte = 0x02

	// KindLogs frames carry one CBOR-encoded telemetry.LogBatch.
	KindLogs byte = 0x03

	// KindPing frames carry a CBOR-encoded telemetry.Announcement
	// acting as a keep-alive.
	KindPing byte = 0x04

	// KindProperties frames carry a CBOR-encoded
	// telemetry.Announcement with the full property set.
	KindProperties byte = 0x05
)

// frameHeaderLength is the fixed size of a frame header: 1 byte kind
// + 4 bytes payload length.
const frameHeaderLength = 5

// MaxPayloadLength is the maximum allowed payload size. 16 MB is
// generous for a telemetry batch; a typical segment frame is a few
// kilobytes.
const MaxPayloadLength = 16 * 1024 * 1024

// Frame is a single producer protocol frame.
type Frame struct {
	Kind    byte
	Payload []byte
}

// WriteFrame writes a framed message to w. The frame format is:
// [1 byte kind] [4 bytes payload length, big-endian uint32] [payload].
func WriteFrame(w io.Writer, frame Frame) error {
	var header [frameHeaderLength]byte
	header[0] = frame.Kind
	binary.BigEndian.PutUint32(header[1:5], uint32(len(frame.Payload)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if len(frame.Payload) > 0 {
		if _, err := w.Write(frame.Payload); err != nil {
			return fmt.Errorf("write frame payload: %w", err)
		}
	}
	return nil
}

// ReadFrame reads a framed message from r.
//
// A clean close before the first header byte surfaces as io.EOF and a
// close partway through a frame as io.ErrUnexpectedEOF; callers treat
// both as end-of-stream. Any other failure (oversize payload, read
// error) is a malformed frame.
func ReadFrame(r io.Reader) (Frame, error) {
	var header [frameHeaderLength]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return Frame{}, err
		}
		return Frame{}, fmt.Errorf("read frame header: %w", err)
	}
	kind := header[0]
	payloadLength := binary.BigEndian.Uint32(header[1:5])
	if payloadLength > MaxPayloadLength {
		return Frame{}, fmt.Errorf("payload length %d exceeds maximum %d", payloadLength, MaxPayloadLength)
	}
	payload := make([]byte, payloadLength)
	if payloadLength > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return Frame{}, io.ErrUnexpectedEOF
			}
			return Frame{}, fmt.Errorf("read frame payload: %w", err)
		}
	}
	return Frame{Kind: kind, Payload: payload}, nil
}

// EncodeItem encodes a telemetry item as a frame. The item must
// validate; the frame kind is taken from the item kind.
func EncodeItem(item telemetry.Item) (Frame, error) {
	if err := item.Validate(); err != nil {
		return Frame{}, err
	}

	var payload any
	switch item.Kind {
	case telemetry.KindSegment:
		payload = item.Segment
	case telemetry.KindMetrics:
		payload = item.Metrics
	case telemetry.KindLogs:
		payload = item.Logs
	case telemetry.KindPing, telemetry.KindProperties:
		payload = item.Announcement
	}

	encoded, err := codec.Marshal(payload)
	if err != nil {
		return Frame{}, fmt.Errorf("encode %s payload: %w", item.Kind, err)
	}
	return Frame{Kind: byte(item.Kind), Payload: encoded}, nil
}

// DecodeFrame decodes a frame into a telemetry item. Unknown kinds
// and malformed payloads are errors; the caller logs and moves on to
// the next frame.
func DecodeFrame(frame Frame) (telemetry.Item, error) {
	item := telemetry.Item{Kind: telemetry.ItemKind(frame.Kind)}

	var payload any
	switch frame.Kind {
	case KindSegment:
		item.Segment = &telemetry.Segment{}
		payload = item.Segment
	case KindMetrics:
		item.Metrics = &telemetry.MetricBatch{}
		payload = item.Metrics
	case KindLogs:
		item.Logs = &telemetry.LogBatch{}
		payload = item.Logs
	case KindPing, KindProperties:
		item.Announcement = &telemetry.Announcement{}
		payload = item.Announcement
	default:
		return telemetry.Item{}, fmt.Errorf("unknown frame kind 0x%02x", frame.Kind)
	}

	if err := codec.Unmarshal(frame.Payload, payload); err != nil {
		return telemetry.Item{}, fmt.Errorf("decode %s payload: %w", item.Kind, err)
	}
	return item, nil
}

// WriteItem encodes and writes one telemetry item to w.
func WriteItem(w io.Writer, item telemetry.Item) error {
	frame, err := EncodeItem(item)
	if err != nil {
		return err
	}
	return WriteFrame(w, frame)
}

// ReadItem reads and decodes one telemetry item from r. End-of-stream
// surfaces as io.EOF or io.ErrUnexpectedEOF exactly as for ReadFrame.
func ReadItem(r io.Reader) (telemetry.Item, error) {
	frame, err := ReadFrame(r)
	if err != nil {
		return telemetry.Item{}, err
	}
	return DecodeFrame(frame)
}
