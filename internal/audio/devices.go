package audio

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// Device describes one capture-capable PortAudio device.
type Device struct {
	Index             int
	Name              string
	MaxInputChannels  int
	DefaultSampleRate float64
	IsDefault         bool
}

func (d Device) String() string {
	mark := ""
	if d.IsDefault {
		mark = " (default)"
	}
	return fmt.Sprintf("%d: %s%s", d.Index, d.Name, mark)
}

// ListDevices returns every device with at least one input channel. Index
// is the value accepted by OpenMicrophone.
func ListDevices() ([]Device, error) {
	if err := GetManager().Initialize(); err != nil {
		return nil, err
	}
	defer GetManager().Terminate()

	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	def, _ := portaudio.DefaultInputDevice()

	return inputDevices(infos, def), nil
}

func inputDevices(infos []*portaudio.DeviceInfo, def *portaudio.DeviceInfo) []Device {
	var out []Device
	for i, info := range infos {
		if info == nil || info.MaxInputChannels <= 0 {
			continue
		}
		out = append(out, Device{
			Index:             i,
			Name:              info.Name,
			MaxInputChannels:  info.MaxInputChannels,
			DefaultSampleRate: info.DefaultSampleRate,
			IsDefault:         def != nil && info.Name == def.Name,
		})
	}
	return out
}
