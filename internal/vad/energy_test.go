package vad

import (
	"math"
	"testing"
)

func TestFrameSizeFor(t *testing.T) {
	tests := []struct {
		rate    int
		want    int
		wantErr bool
	}{
		{8000, 256, false},
		{16000, 512, false},
		{44100, 0, true},
		{0, 0, true},
	}

	for _, tt := range tests {
		got, err := FrameSizeFor(tt.rate)
		if (err != nil) != tt.wantErr {
			t.Errorf("FrameSizeFor(%d) error = %v, wantErr %v", tt.rate, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("FrameSizeFor(%d) = %d, want %d", tt.rate, got, tt.want)
		}
	}
}

func TestNewUnknownEngine(t *testing.T) {
	_, err := New(Config{Engine: "webrtc", SampleRate: 16000})
	if err == nil {
		t.Fatal("New() with unknown engine should fail")
	}
}

func TestNewEnergyEngine(t *testing.T) {
	det, err := New(Config{Engine: "energy", SampleRate: 8000, EnergyLevel: 0.1})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer det.Close()

	if det.SampleRate() != 8000 || det.FrameSize() != 256 {
		t.Errorf("got rate %d frame %d, want 8000/256", det.SampleRate(), det.FrameSize())
	}
}

func TestNewEnergyValidation(t *testing.T) {
	if _, err := NewEnergy(44100, 0.1); err == nil {
		t.Error("NewEnergy(44100) should fail")
	}
	if _, err := NewEnergy(16000, 0); err == nil {
		t.Error("NewEnergy(level 0) should fail")
	}
}

func TestEnergyProbability(t *testing.T) {
	e, err := NewEnergy(16000, 0.1)
	if err != nil {
		t.Fatalf("NewEnergy() error = %v", err)
	}

	tests := []struct {
		name  string
		value float32
		want  float32
	}{
		{"silence", 0, 0},
		{"half level", 0.05, 0.5},
		{"at level", 0.1, 1},
		{"clipped above level", 0.8, 1},
		{"negative samples", -0.05, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Probability(block(512, tt.value))
			if err != nil {
				t.Fatalf("Probability() error = %v", err)
			}
			if math.Abs(float64(got-tt.want)) > 1e-4 {
				t.Errorf("Probability() = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestEnergyWrongFrameSize(t *testing.T) {
	e, err := NewEnergy(16000, 0.1)
	if err != nil {
		t.Fatalf("NewEnergy() error = %v", err)
	}
	if _, err := e.Probability(make([]float32, 100)); err == nil {
		t.Error("Probability() with 100 samples should fail")
	}
}

func TestEnergyDrivesStream(t *testing.T) {
	e, err := NewEnergy(16000, 0.1)
	if err != nil {
		t.Fatalf("NewEnergy() error = %v", err)
	}
	s, err := NewStream(e, 16000, StreamOptions{Threshold: 0.5})
	if err != nil {
		t.Fatalf("NewStream() error = %v", err)
	}

	s.Write(block(512, 0.001))
	s.Write(block(512, 0.2))
	s.Write(block(512, 0.001))
	s.Flush()

	if got := len(s.Audio()); got != 1024 {
		t.Errorf("Audio() len = %d, want 1024 (speech plus one trailing block)", got)
	}
}

func TestSileroRequiresModelPath(t *testing.T) {
	if _, err := NewSilero(SileroConfig{SampleRate: 16000}); err == nil {
		t.Error("NewSilero() without a model path should fail")
	}
	if _, err := NewSilero(SileroConfig{SampleRate: 22050, ModelPath: "x.onnx"}); err == nil {
		t.Error("NewSilero() with unsupported rate should fail")
	}
}
