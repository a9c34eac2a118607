package audio

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

var defaultManager = newManager(portaudio.Initialize, portaudio.Terminate)

// Manager reference-counts PortAudio so the microphone, the player and
// device listing can each acquire and release the library independently.
type Manager struct {
	mu    sync.Mutex
	refs  int
	start func() error
	stop  func() error
}

func newManager(start, stop func() error) *Manager {
	return &Manager{start: start, stop: stop}
}

// GetManager returns the process-wide PortAudio manager.
func GetManager() *Manager { return defaultManager }

// Initialize starts PortAudio on the first reference.
func (m *Manager) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.refs == 0 {
		if err := m.start(); err != nil {
			return fmt.Errorf("failed to initialize PortAudio: %w", err)
		}
	}
	m.refs++
	return nil
}

// Terminate releases a reference and stops PortAudio with the last one.
// Extra calls are ignored.
func (m *Manager) Terminate() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.refs == 0 {
		return nil
	}
	m.refs--
	if m.refs > 0 {
		return nil
	}
	if err := m.stop(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return nil
}
