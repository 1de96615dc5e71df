package vad

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// The ONNX Runtime environment is process-wide and is never torn down;
// re-initializing it after DestroyEnvironment is not supported.
var (
	ortOnce sync.Once
	ortErr  error
)

// SileroConfig configures a Silero detector.
type SileroConfig struct {
	ModelPath       string // silero_vad.onnx
	OnnxRuntimePath string // shared library; empty uses the runtime's default name
	SampleRate      int    // 8000 or 16000
}

// Silero runs the Silero VAD ONNX model one frame at a time. The model is
// recurrent: its hidden state and the tail of the previous frame are fed
// back on every call.
type Silero struct {
	mu sync.Mutex

	sampleRate  int
	frameSize   int
	contextSize int

	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32] // [1, context+frame]
	srTensor     *ort.Tensor[int64]
	stateTensor  *ort.Tensor[float32] // [2, 1, 128]
	outputTensor *ort.Tensor[float32] // [1, 1]
	stateNTensor *ort.Tensor[float32] // [2, 1, 128]

	context []float32
}

// NewSilero loads the model and prepares the inference session.
func NewSilero(cfg SileroConfig) (*Silero, error) {
	frameSize, err := FrameSizeFor(cfg.SampleRate)
	if err != nil {
		return nil, err
	}
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("vad: silero model path is empty")
	}

	if err := initRuntime(cfg.OnnxRuntimePath); err != nil {
		return nil, err
	}

	contextSize := 32
	if cfg.SampleRate == 16000 {
		contextSize = 64
	}

	s := &Silero{
		sampleRate:  cfg.SampleRate,
		frameSize:   frameSize,
		contextSize: contextSize,
		context:     make([]float32, contextSize),
	}
	if err := s.createSession(cfg.ModelPath); err != nil {
		s.destroy()
		return nil, err
	}
	return s, nil
}

func initRuntime(libPath string) error {
	ortOnce.Do(func() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		ortErr = ort.InitializeEnvironment()
	})
	if ortErr != nil {
		return fmt.Errorf("vad: initialize onnx runtime: %w", ortErr)
	}
	return nil
}

func (s *Silero) createSession(modelPath string) error {
	var err error

	s.inputTensor, err = ort.NewEmptyTensor[float32](ort.NewShape(1, int64(s.contextSize+s.frameSize)))
	if err != nil {
		return fmt.Errorf("vad: create input tensor: %w", err)
	}
	s.srTensor, err = ort.NewTensor(ort.NewShape(1), []int64{int64(s.sampleRate)})
	if err != nil {
		return fmt.Errorf("vad: create sr tensor: %w", err)
	}
	s.stateTensor, err = ort.NewEmptyTensor[float32](ort.NewShape(2, 1, 128))
	if err != nil {
		return fmt.Errorf("vad: create state tensor: %w", err)
	}
	s.outputTensor, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		return fmt.Errorf("vad: create output tensor: %w", err)
	}
	s.stateNTensor, err = ort.NewEmptyTensor[float32](ort.NewShape(2, 1, 128))
	if err != nil {
		return fmt.Errorf("vad: create stateN tensor: %w", err)
	}

	s.session, err = ort.NewAdvancedSession(
		modelPath,
		[]string{"input", "sr", "state"},
		[]string{"output", "stateN"},
		[]ort.Value{s.inputTensor, s.srTensor, s.stateTensor},
		[]ort.Value{s.outputTensor, s.stateNTensor},
		nil,
	)
	if err != nil {
		return fmt.Errorf("vad: load silero model %q: %w", modelPath, err)
	}
	return nil
}

func (s *Silero) SampleRate() int { return s.sampleRate }

func (s *Silero) FrameSize() int { return s.frameSize }

// Probability runs one inference step over frame.
func (s *Silero) Probability(frame []float32) (float32, error) {
	if len(frame) != s.frameSize {
		return 0, fmt.Errorf("vad: expected %d samples, got %d", s.frameSize, len(frame))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return 0, fmt.Errorf("vad: detector closed")
	}

	input := s.inputTensor.GetData()
	copy(input, s.context)
	copy(input[s.contextSize:], frame)

	if err := s.session.Run(); err != nil {
		return 0, fmt.Errorf("vad: inference: %w", err)
	}

	prob := s.outputTensor.GetData()[0]
	copy(s.stateTensor.GetData(), s.stateNTensor.GetData())
	copy(s.context, input[len(input)-s.contextSize:])

	return prob, nil
}

// Reset zeroes the recurrent state and context window.
func (s *Silero) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.context)
	if s.stateTensor != nil {
		clear(s.stateTensor.GetData())
	}
}

// Close destroys the session and tensors. The runtime environment stays
// initialized for later detectors.
func (s *Silero) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroy()
	return nil
}

func (s *Silero) destroy() {
	if s.session != nil {
		s.session.Destroy()
		s.session = nil
	}
	if s.inputTensor != nil {
		s.inputTensor.Destroy()
		s.inputTensor = nil
	}
	if s.srTensor != nil {
		s.srTensor.Destroy()
		s.srTensor = nil
	}
	if s.stateTensor != nil {
		s.stateTensor.Destroy()
		s.stateTensor = nil
	}
	if s.outputTensor != nil {
		s.outputTensor.Destroy()
		s.outputTensor = nil
	}
	if s.stateNTensor != nil {
		s.stateNTensor.Destroy()
		s.stateNTensor = nil
	}
}
