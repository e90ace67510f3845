package observability

import (
	"context"
	"crypto/tls"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestInitMeterProvider(t *testing.T) {
	cfg := Config{
		ServiceName:    "test-service",
		ServiceVersion: "1.0.0",
		Environment:    "test",
	}

	mp, err := InitMeterProvider(cfg)
	require.NoError(t, err, "Should initialize meter provider without error")
	require.NotNil(t, mp, "Meter provider should not be nil")
	require.NotNil(t, mp.provider, "Provider should not be nil")
	require.NotNil(t, mp.exporter, "Exporter should not be nil")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	err = mp.Shutdown(context.Background(), logger)
	assert.NoError(t, err, "Should shutdown without error")
}

func TestInitMetrics(t *testing.T) {
	mp, err := InitMeterProvider(Config{
		ServiceName:    "test-service",
		ServiceVersion: "1.0.0",
		Environment:    "test",
	})
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	defer func() { _ = mp.Shutdown(context.Background(), logger) }()

	views, hydration, err := InitMetrics(logger)
	require.NoError(t, err, "Should initialize metrics without error")
	require.NotNil(t, views)
	require.NotNil(t, hydration)

	require.NotNil(t, views.runDuration)
	require.NotNil(t, views.runCounter)
	require.NotNil(t, views.errorCounter)
	require.NotNil(t, views.activeRuns)
	require.NotNil(t, hydration.fetchDuration)
}

func TestResolveExporterSettings(t *testing.T) {
	tests := []struct {
		name    string
		cfg     OTLPExporterConfig
		want    exporterSettings
		wantTLS bool
		wantErr string
	}{
		{
			name: "grpc defaults",
			cfg:  OTLPExporterConfig{Endpoint: "localhost:4317", Insecure: true},
			want: exporterSettings{protocol: otlpProtocolGRPC, endpoint: "localhost:4317"},
		},
		{
			name: "http url with gzip and retry",
			cfg: OTLPExporterConfig{
				Endpoint:         "https://collector:4318/v1/traces",
				Protocol:         "http",
				Insecure:         true,
				Compression:      "gzip",
				RetryEnabled:     true,
				RetryMaxAttempts: 3,
				Headers:          map[string]string{"x-key": "v"},
				Timeout:          time.Second,
			},
			want: exporterSettings{
				protocol:    otlpProtocolHTTP,
				endpoint:    "https://collector:4318/v1/traces",
				endpointURL: true,
				gzip:        true,
				retry:       true,
				headers:     map[string]string{"x-key": "v"},
				timeout:     time.Second,
			},
		},
		{
			name: "retry needs attempts",
			cfg:  OTLPExporterConfig{Endpoint: "c:4317", Insecure: true, RetryEnabled: true},
			want: exporterSettings{protocol: otlpProtocolGRPC, endpoint: "c:4317"},
		},
		{
			name:    "secure builds tls",
			cfg:     OTLPExporterConfig{Endpoint: "c:4317"},
			want:    exporterSettings{protocol: otlpProtocolGRPC, endpoint: "c:4317"},
			wantTLS: true,
		},
		{
			name:    "bad protocol",
			cfg:     OTLPExporterConfig{Protocol: "udp"},
			wantErr: "unsupported OTLP protocol",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveExporterSettings(tt.cfg)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			if tt.wantTLS {
				require.NotNil(t, got.tls)
				assert.Equal(t, uint16(tls.VersionTLS12), got.tls.MinVersion)
			} else {
				assert.Nil(t, got.tls)
			}
			got.tls = nil
			assert.Equal(t, tt.want, got)

			assert.NotEmpty(t, got.traceGRPC())
			assert.NotEmpty(t, got.traceHTTP())
			assert.NotEmpty(t, got.logGRPC())
			assert.NotEmpty(t, got.logHTTP())
		})
	}
}

func TestBuildTLSConfig_FileNotFound(t *testing.T) {
	// Missing CA file should surface a clear error.
	_, err := buildTLSConfig(OTLPExporterConfig{
		TLSCertFile: "/nonexistent/ca.pem",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read OTLP TLS CA file")
}

func TestBuildTLSConfig_InvalidCertFormat(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/ca.pem"

	// Write a non-PEM payload to trigger parse failure.
	require.NoError(t, os.WriteFile(path, []byte("not-a-cert"), 0600))

	_, err := buildTLSConfig(OTLPExporterConfig{
		TLSCertFile: path,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse OTLP TLS CA file")
}

func TestBuildTLSConfig_MissingClientKeyPair(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/client.crt"

	// Only set the cert path to ensure missing key is rejected.
	require.NoError(t, os.WriteFile(path, []byte("not-a-cert"), 0600))

	_, err := buildTLSConfig(OTLPExporterConfig{
		TLSClientCertFile: path,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OTLP TLS client cert and key must both be set")
}

func TestTraceSamplerForRatio_Boundaries(t *testing.T) {
	never := traceSamplerForRatio(0)
	always := traceSamplerForRatio(1)

	decisionNever := never.ShouldSample(sdktrace.SamplingParameters{
		ParentContext: context.Background(),
		TraceID:       trace.TraceID{1},
		Name:          "test",
	}).Decision
	assert.Equal(t, sdktrace.Drop, decisionNever)

	decisionAlways := always.ShouldSample(sdktrace.SamplingParameters{
		ParentContext: context.Background(),
		TraceID:       trace.TraceID{2},
		Name:          "test",
	}).Decision
	assert.Equal(t, sdktrace.RecordAndSample, decisionAlways)
}

func TestTraceSamplerForRatio_ParentAwareMidRange(t *testing.T) {
	sampler := traceSamplerForRatio(0.5)

	parentSampled := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{3},
		SpanID:     trace.SpanID{1},
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	}))
	decisionSampledParent := sampler.ShouldSample(sdktrace.SamplingParameters{
		ParentContext: parentSampled,
		TraceID:       trace.TraceID{4},
		Name:          "child",
	}).Decision
	assert.Equal(t, sdktrace.RecordAndSample, decisionSampledParent)

	parentNotSampled := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: trace.TraceID{5},
		SpanID:  trace.SpanID{2},
		Remote:  true,
	}))
	decisionUnsampledParent := sampler.ShouldSample(sdktrace.SamplingParameters{
		ParentContext: parentNotSampled,
		TraceID:       trace.TraceID{6},
		Name:          "child",
	}).Decision
	assert.Equal(t, sdktrace.Drop, decisionUnsampledParent)
}
