package audio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	"voice-loop/internal/logging"
)

const (
	sampleRate      = 16000
	channels        = 1
	framesPerBuffer = 1024
)

// DefaultDevice selects the host's default input device.
const DefaultDevice = -1

var (
	// ErrNoMicrophone means no preferred device nor the default could be opened.
	ErrNoMicrophone = errors.New("no usable microphone")
	// ErrClosed is returned by reads after Close.
	ErrClosed = errors.New("audio input closed")
)

// BlockReader delivers fixed-size blocks of mono samples.
type BlockReader interface {
	ReadBlock() ([]float32, error)
	SampleRate() int
	Close() error
}

// Microphone is a blocking PortAudio capture stream.
type Microphone struct {
	stream *portaudio.Stream
	buffer []float32
	device int
	name   string
	rate   int

	mu     sync.Mutex
	closed bool
}

var _ BlockReader = (*Microphone)(nil)

// OpenMicrophone opens the first device in prefs that works, falling back
// to the system default. prefs holds indices as listed by ListDevices.
func OpenMicrophone(prefs []int, rate int) (*Microphone, error) {
	if rate <= 0 {
		rate = sampleRate
	}
	if err := GetManager().Initialize(); err != nil {
		return nil, err
	}

	mic := &Microphone{
		buffer: make([]float32, framesPerBuffer),
		rate:   rate,
	}

	chosen, err := ChooseDevice(prefs, mic.open)
	if err != nil {
		_ = GetManager().Terminate()
		return nil, err
	}
	mic.device = chosen

	logging.Infow("microphone opened", "device", chosen, "name", mic.name, "sample_rate", rate)
	return mic, nil
}

// ChooseDevice calls try for each preferred index and then DefaultDevice,
// returning the first index for which try succeeds.
func ChooseDevice(prefs []int, try func(index int) error) (int, error) {
	var errs []error
	for _, idx := range append(append([]int{}, prefs...), DefaultDevice) {
		err := try(idx)
		if err == nil {
			return idx, nil
		}
		logging.Warnw("microphone unavailable, trying next", "device", idx, "error", err)
		errs = append(errs, fmt.Errorf("device %d: %w", idx, err))
	}
	return 0, fmt.Errorf("%w: %w", ErrNoMicrophone, errors.Join(errs...))
}

func (m *Microphone) open(index int) error {
	var dev *portaudio.DeviceInfo
	if index == DefaultDevice {
		d, err := portaudio.DefaultInputDevice()
		if err != nil {
			return err
		}
		dev = d
	} else {
		devices, err := portaudio.Devices()
		if err != nil {
			return err
		}
		if index < 0 || index >= len(devices) {
			return fmt.Errorf("index out of range (have %d devices)", len(devices))
		}
		dev = devices[index]
	}
	if dev.MaxInputChannels < channels {
		return fmt.Errorf("%q has no input channels", dev.Name)
	}

	p := portaudio.LowLatencyParameters(dev, nil)
	p.Input.Channels = channels
	p.Output.Channels = 0
	p.SampleRate = float64(m.rate)
	p.FramesPerBuffer = len(m.buffer)

	stream, err := portaudio.OpenStream(p, m.buffer)
	if err != nil {
		return err
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return err
	}

	m.stream = stream
	m.name = dev.Name
	return nil
}

// ReadBlock blocks until one buffer of samples is captured and returns a copy.
func (m *Microphone) ReadBlock() ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	if err := m.stream.Read(); err != nil {
		return nil, err
	}

	data := make([]float32, len(m.buffer))
	copy(data, m.buffer)
	return data, nil
}

func (m *Microphone) SampleRate() int { return m.rate }

// Device returns the chosen device index, DefaultDevice for the default.
func (m *Microphone) Device() int { return m.device }

func (m *Microphone) Name() string { return m.name }

// Close stops the stream. It waits for an in-progress ReadBlock to return.
func (m *Microphone) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	if m.stream != nil {
		_ = m.stream.Stop()
		if err := m.stream.Close(); err != nil {
			return fmt.Errorf("failed to close input stream: %w", err)
		}
	}
	return GetManager().Terminate()
}
