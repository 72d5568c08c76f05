// Copyright 2026 The Spool Authors
// SPDX-License-Identifier: Apache-2.0

// Package otlp exports collected telemetry to an OpenTelemetry
// collector, speaking OTLP over either gRPC or protobuf-over-HTTP.
//
// One Exporter serves all four signal shapes: trace segments become
// trace export requests, metric batches become gauge metrics, log
// batches become log records, and instance announcements become a
// spool.heartbeat gauge carrying the instance properties as resource
// attributes. The Exporter satisfies reporter.Exporter; it performs
// no retries of its own, leaving failure policy to the pipeline.
package otlp

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	colmetricspb "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/proto"

	"github.com/spool-works/spool/lib/reporter"
	"github.com/spool-works/spool/lib/telemetry"
)

// Protocol selects the OTLP transport.
type Protocol string

const (
	// ProtocolGRPC exports over gRPC.
	ProtocolGRPC Protocol = "grpc"
	// ProtocolHTTP exports protobuf request bodies over HTTP POST.
	ProtocolHTTP Protocol = "http"
)

// DefaultTimeout bounds a single export request when Config.Timeout
// is zero.
const DefaultTimeout = 10 * time.Second

// TLSConfig configures transport security for the collector
// connection. The zero value means plaintext.
type TLSConfig struct {
	// Enable switches the connection to TLS.
	Enable bool
	// CAPath is a PEM file with the trusted CA certificates. Empty
	// means the system roots.
	CAPath string
	// CertPath and KeyPath enable mutual TLS when both are set.
	CertPath string
	KeyPath  string
}

// Config holds the exporter configuration.
type Config struct {
	// Endpoint is the collector address: host:port for gRPC, or a
	// URL for HTTP. An HTTP endpoint without a scheme gets http://
	// or https:// prepended depending on TLS; the per-signal OTLP
	// paths (/v1/traces, /v1/metrics, /v1/logs) are always appended.
	Endpoint string
	// Protocol is the export transport. Defaults to grpc.
	Protocol Protocol
	// Timeout bounds each export request. Defaults to
	// DefaultTimeout.
	Timeout time.Duration
	// Authentication is a collector access token, sent with every
	// request when non-empty: as "authentication" metadata on gRPC,
	// as an Authentication header on HTTP.
	Authentication string
	// Compression is applied to HTTP request bodies. The gRPC
	// transport negotiates compression itself, so it is ignored
	// there.
	Compression reporter.Compression
	// TLS configures transport security.
	TLS TLSConfig
}

// Exporter sends telemetry items to an OTLP collector. All methods
// are safe for concurrent use.
type Exporter struct {
	protocol Protocol
	timeout  time.Duration

	grpcConn      *grpc.ClientConn
	traceClient   coltracepb.TraceServiceClient
	metricsClient colmetricspb.MetricsServiceClient
	logsClient    collogspb.LogsServiceClient

	token       string
	compression reporter.Compression
	httpClient  *http.Client
	httpBase    string
}

var _ reporter.Exporter = (*Exporter)(nil)

// New creates an Exporter for the configured protocol. The gRPC
// variant connects lazily: a collector that is down at startup
// surfaces as an export error, not a constructor error.
func New(cfg Config) (*Exporter, error) {
	if cfg.Protocol == "" {
		cfg.Protocol = ProtocolGRPC
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	switch cfg.Protocol {
	case ProtocolGRPC:
		return newGRPCExporter(cfg)
	case ProtocolHTTP:
		return newHTTPExporter(cfg)
	default:
		return nil, fmt.Errorf("unsupported protocol: %s", cfg.Protocol)
	}
}

func newGRPCExporter(cfg Config) (*Exporter, error) {
	var opts []grpc.DialOption
	if cfg.TLS.Enable {
		tlsConfig, err := newTLSConfig(cfg.TLS)
		if err != nil {
			return nil, fmt.Errorf("configure tls: %w", err)
		}
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(tlsConfig)))
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	if cfg.Authentication != "" {
		opts = append(opts, grpc.WithUnaryInterceptor(authInterceptor(cfg.Authentication)))
	}

	conn, err := grpc.NewClient(cfg.Endpoint, opts...)
	if err != nil {
		return nil, fmt.Errorf("create client for %s: %w", cfg.Endpoint, err)
	}

	return &Exporter{
		protocol:      ProtocolGRPC,
		timeout:       cfg.Timeout,
		grpcConn:      conn,
		traceClient:   coltracepb.NewTraceServiceClient(conn),
		metricsClient: colmetricspb.NewMetricsServiceClient(conn),
		logsClient:    collogspb.NewLogsServiceClient(conn),
	}, nil
}

// authInterceptor attaches the collector access token as
// "authentication" metadata on every RPC.
func authInterceptor(token string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "authentication", token)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

func newHTTPExporter(cfg Config) (*Exporter, error) {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	scheme := "http"
	if cfg.TLS.Enable {
		tlsConfig, err := newTLSConfig(cfg.TLS)
		if err != nil {
			return nil, fmt.Errorf("configure tls: %w", err)
		}
		transport.TLSClientConfig = tlsConfig
		scheme = "https"
	}

	endpoint := cfg.Endpoint
	if !strings.Contains(endpoint, "://") {
		endpoint = scheme + "://" + endpoint
	}

	return &Exporter{
		protocol:    ProtocolHTTP,
		timeout:     cfg.Timeout,
		token:       cfg.Authentication,
		compression: cfg.Compression,
		httpClient:  &http.Client{Transport: transport},
		httpBase:    strings.TrimSuffix(endpoint, "/"),
	}, nil
}

// newTLSConfig builds the client TLS configuration: system roots or
// the configured CA, plus a client certificate pair for mutual TLS
// when both paths are set.
func newTLSConfig(cfg TLSConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}

	if cfg.CertPath != "" && cfg.KeyPath != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertPath, cfg.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	if cfg.CAPath != "" {
		caCert, err := os.ReadFile(cfg.CAPath)
		if err != nil {
			return nil, fmt.Errorf("read ca certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("parse ca certificate %s: no certificates found", cfg.CAPath)
		}
		tlsConfig.RootCAs = pool
	}

	return tlsConfig, nil
}

// requestForItem converts an item into its OTLP export request and
// the HTTP path the request posts to.
func requestForItem(item telemetry.Item) (proto.Message, string, error) {
	switch item.Kind {
	case telemetry.KindSegment:
		return TraceRequest(item.Segment), "/v1/traces", nil
	case telemetry.KindMetrics:
		return MetricsRequest(item.Metrics), "/v1/metrics", nil
	case telemetry.KindLogs:
		return LogsRequest(item.Logs), "/v1/logs", nil
	case telemetry.KindPing, telemetry.KindProperties:
		return HeartbeatRequest(item.Announcement, item.Kind == telemetry.KindProperties), "/v1/metrics", nil
	default:
		return nil, "", fmt.Errorf("invalid item kind %d", uint8(item.Kind))
	}
}

// Export converts one item and sends it to the collector.
func (e *Exporter) Export(ctx context.Context, item telemetry.Item) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	switch e.protocol {
	case ProtocolGRPC:
		return e.exportGRPC(ctx, item)
	case ProtocolHTTP:
		return e.exportHTTP(ctx, item)
	default:
		return fmt.Errorf("unsupported protocol: %s", e.protocol)
	}
}

func (e *Exporter) exportGRPC(ctx context.Context, item telemetry.Item) error {
	req, _, err := requestForItem(item)
	if err != nil {
		return err
	}
	switch req := req.(type) {
	case *coltracepb.ExportTraceServiceRequest:
		_, err = e.traceClient.Export(ctx, req)
	case *colmetricspb.ExportMetricsServiceRequest:
		_, err = e.metricsClient.Export(ctx, req)
	case *collogspb.ExportLogsServiceRequest:
		_, err = e.logsClient.Export(ctx, req)
	}
	return err
}

func (e *Exporter) exportHTTP(ctx context.Context, item telemetry.Item) error {
	req, path, err := requestForItem(item)
	if err != nil {
		return err
	}

	body, err := proto.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	if e.compression != "" && e.compression != reporter.CompressionNone {
		body, err = reporter.Compress(body, e.compression)
		if err != nil {
			return fmt.Errorf("compress request: %w", err)
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.httpBase+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-protobuf")
	if encoding := e.compression.ContentEncoding(); encoding != "" {
		httpReq.Header.Set("Content-Encoding", encoding)
	}
	if e.token != "" {
		httpReq.Header.Set("Authentication", e.token)
	}

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	// Drain the body so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return nil
}

// Close releases the collector connection.
func (e *Exporter) Close() error {
	switch e.protocol {
	case ProtocolGRPC:
		if e.grpcConn != nil {
			return e.grpcConn.Close()
		}
	case ProtocolHTTP:
		if e.httpClient != nil {
			e.httpClient.CloseIdleConnections()
		}
	}
	return nil
}
