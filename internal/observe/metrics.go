// Package observe provides the application's OpenTelemetry metrics and an
// optional Prometheus /metrics endpoint.
//
// Tests should use [NewMetrics] with a custom [metric.MeterProvider] (for
// example one backed by an sdkmetric.ManualReader) to inspect recorded values.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// meterName is the instrumentation scope name used for all speakgo metrics.
const meterName = "github.com/chaz8081/speakgo"

// Recording outcomes used with RecordRecording.
const (
	StatusOK        = "ok"
	StatusEmpty     = "empty"
	StatusTooShort  = "too_short"
	StatusCancelled = "cancelled"
	StatusError     = "error"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
type Metrics struct {
	// Recordings counts finished recordings. Use with attribute:
	//   attribute.String("status", ...)
	Recordings metric.Int64Counter

	// CapturedSeconds accumulates seconds of audio sent for transcription.
	CapturedSeconds metric.Float64Counter

	// VADFrames counts scored detector frames. Use with attribute:
	//   attribute.String("class", "speech"|"silence")
	VADFrames metric.Int64Counter

	// CompressionRatio tracks compressed size / WAV size.
	CompressionRatio metric.Float64Histogram

	// TranscriptionDuration tracks transcription latency.
	TranscriptionDuration metric.Float64Histogram

	// TranscriptionErrors counts failed transcriptions. Use with attribute:
	//   attribute.String("kind", ...)
	TranscriptionErrors metric.Int64Counter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for
// transcription round trips.
var latencyBuckets = []float64{
	0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30, 60,
}

var ratioBuckets = []float64{
	0.02, 0.05, 0.1, 0.2, 0.35, 0.5, 0.75, 1,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Recordings, err = m.Int64Counter("speakgo.recordings",
		metric.WithDescription("Finished recordings by outcome."),
	); err != nil {
		return nil, err
	}
	if met.CapturedSeconds, err = m.Float64Counter("speakgo.audio.captured",
		metric.WithDescription("Seconds of audio sent for transcription."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if met.VADFrames, err = m.Int64Counter("speakgo.vad.frames",
		metric.WithDescription("Voice activity detector frames by class."),
	); err != nil {
		return nil, err
	}
	if met.CompressionRatio, err = m.Float64Histogram("speakgo.compress.ratio",
		metric.WithDescription("Compressed size divided by WAV size."),
		metric.WithExplicitBucketBoundaries(ratioBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranscriptionDuration, err = m.Float64Histogram("speakgo.transcribe.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranscriptionErrors, err = m.Int64Counter("speakgo.transcribe.errors",
		metric.WithDescription("Failed transcriptions by kind."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// Discard returns a Metrics whose instruments record nothing.
func Discard() *Metrics {
	m, err := NewMetrics(noop.NewMeterProvider())
	if err != nil {
		panic("observe: noop metrics: " + err.Error())
	}
	return m
}

// RecordRecording counts one finished recording.
func (m *Metrics) RecordRecording(ctx context.Context, status string) {
	m.Recordings.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordCaptured adds d to the captured audio total.
func (m *Metrics) RecordCaptured(ctx context.Context, d time.Duration) {
	m.CapturedSeconds.Add(ctx, d.Seconds())
}

// RecordVADFrames adds a recording's frame counters.
func (m *Metrics) RecordVADFrames(ctx context.Context, speech, total int) {
	if speech > 0 {
		m.VADFrames.Add(ctx, int64(speech), metric.WithAttributes(attribute.String("class", "speech")))
	}
	if silence := total - speech; silence > 0 {
		m.VADFrames.Add(ctx, int64(silence), metric.WithAttributes(attribute.String("class", "silence")))
	}
}

// RecordCompression records one compression ratio.
func (m *Metrics) RecordCompression(ctx context.Context, ratio float64) {
	m.CompressionRatio.Record(ctx, ratio)
}

// RecordTranscription records a transcription round trip. A non-empty
// errKind also counts an error of that kind.
func (m *Metrics) RecordTranscription(ctx context.Context, d time.Duration, errKind string) {
	status := "ok"
	if errKind != "" {
		status = "error"
		m.TranscriptionErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", errKind)))
	}
	m.TranscriptionDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("status", status)))
}
