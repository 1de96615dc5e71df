package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
)

// Sink receives captured float32 samples. Write is called from the audio
// thread and must not block; the slice is owned by the sink.
type Sink interface {
	Write(samples []float32)
}

// Recorder captures audio from a microphone and forwards each captured
// chunk to a Sink.
type Recorder struct {
	ctx        *malgo.AllocatedContext
	device     *malgo.Device
	sampleRate uint32
	channels   uint32
	deviceIdx  int

	mu        sync.Mutex
	sink      Sink
	recording bool
}

// NewRecorder creates a new audio recorder. deviceIdx selects a capture
// device as listed by ListDevices; a negative value uses the system default.
// Call Close() when done.
func NewRecorder(sampleRate, channels uint32, deviceIdx int) (*Recorder, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("initializing audio context: %w", err)
	}

	r := &Recorder{
		ctx:        ctx,
		sampleRate: sampleRate,
		channels:   channels,
		deviceIdx:  deviceIdx,
	}

	return r, nil
}

// SampleRate returns the capture sample rate in Hz.
func (r *Recorder) SampleRate() uint32 {
	return r.sampleRate
}

// Channels returns the number of captured channels.
func (r *Recorder) Channels() uint32 {
	return r.channels
}

// Start begins capturing audio. Every chunk delivered by the device is
// converted to float32 and handed to sink.
func (r *Recorder) Start(sink Sink) error {
	if sink == nil {
		return fmt.Errorf("audio: nil sink")
	}

	r.mu.Lock()
	if r.recording {
		r.mu.Unlock()
		return fmt.Errorf("already recording")
	}
	r.sink = sink
	r.recording = true
	r.mu.Unlock()

	deviceCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceCfg.Capture.Format = malgo.FormatF32
	deviceCfg.Capture.Channels = r.channels
	deviceCfg.SampleRate = r.sampleRate

	if r.deviceIdx >= 0 {
		infos, err := r.ctx.Devices(malgo.Capture)
		if err != nil {
			r.abortStart()
			return fmt.Errorf("enumerating capture devices: %w", err)
		}
		if r.deviceIdx >= len(infos) {
			r.abortStart()
			return fmt.Errorf("capture device %d not found (%d available)", r.deviceIdx, len(infos))
		}
		deviceCfg.Capture.DeviceID = infos[r.deviceIdx].ID.Pointer()
	}

	callbacks := malgo.DeviceCallbacks{
		Data: r.onData,
	}

	device, err := malgo.InitDevice(r.ctx.Context, deviceCfg, callbacks)
	if err != nil {
		r.abortStart()
		return fmt.Errorf("initializing capture device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		r.abortStart()
		return fmt.Errorf("starting capture device: %w", err)
	}

	r.mu.Lock()
	r.device = device
	r.mu.Unlock()

	return nil
}

func (r *Recorder) abortStart() {
	r.mu.Lock()
	r.recording = false
	r.sink = nil
	r.mu.Unlock()
}

// Stop ends the audio capture. It reports whether a capture was active.
// No sink writes happen after Stop returns.
func (r *Recorder) Stop() bool {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return false
	}
	device := r.device
	r.device = nil
	r.recording = false
	r.mu.Unlock()

	// Uninit waits for the device thread, so it must run without r.mu held.
	if device != nil {
		device.Uninit()
	}

	r.mu.Lock()
	r.sink = nil
	r.mu.Unlock()
	return true
}

// IsRecording returns whether the recorder is currently capturing audio.
func (r *Recorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Close releases all audio resources.
func (r *Recorder) Close() error {
	r.Stop()

	if r.ctx != nil {
		if err := r.ctx.Uninit(); err != nil {
			return fmt.Errorf("uninitializing audio context: %w", err)
		}
		r.ctx.Free()
		r.ctx = nil
	}

	return nil
}

// onData is the malgo callback invoked when audio data is available.
// pSample contains the captured audio frames as raw bytes (float32 format).
func (r *Recorder) onData(_, pSample []byte, frameCount uint32) {
	sampleCount := frameCount * r.channels
	samples := bytesToFloat32(pSample, sampleCount)

	r.mu.Lock()
	sink := r.sink
	r.mu.Unlock()

	if sink != nil && len(samples) > 0 {
		sink.Write(samples)
	}
}

// bytesToFloat32 converts raw bytes (little-endian float32) to a float32 slice.
func bytesToFloat32(data []byte, sampleCount uint32) []float32 {
	samples := make([]float32, 0, sampleCount)
	for i := uint32(0); i < sampleCount; i++ {
		offset := i * 4
		if offset+4 > uint32(len(data)) {
			break
		}
		bits := binary.LittleEndian.Uint32(data[offset : offset+4])
		samples = append(samples, math.Float32frombits(bits))
	}
	return samples
}
