package audio

import (
	"fmt"

	"github.com/gen2brain/malgo"
	"github.com/mwzkhalil/comv2/pkg/logging"
)

// Device owns the real output device and drives Mixer.Tick from malgo's
// realtime callback, grounded on cmd/agent/main.go's malgo.InitDevice
// setup in the teacher repo.
type Device struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	mixer  *Mixer
	logger logging.Logger
}

// OpenDevice initializes the playback-only malgo device at sampleRate,
// stereo, 16-bit, driving the given Mixer's Tick on every callback.
func OpenDevice(mixer *Mixer, sampleRate int, logger logging.Logger) (*Device, error) {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("audio: malgo.InitContext: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = 2
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.Alsa.NoMMap = 1

	d := &Device{ctx: ctx, mixer: mixer, logger: logger}

	onSamples := func(pOutput, _ []byte, frameCount uint32) {
		frames := mixer.Tick(int(frameCount))
		copy(pOutput, InterleaveLE16(frames))
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onSamples,
	})
	if err != nil {
		ctx.Uninit()
		return nil, fmt.Errorf("audio: malgo.InitDevice: %w", err)
	}
	d.device = device

	return d, nil
}

// Start begins playback. Ambience playback effectively starts the moment
// this returns, before any commentary event is processed (spec §4.1).
func (d *Device) Start() error {
	if err := d.device.Start(); err != nil {
		return fmt.Errorf("audio: device start: %w", err)
	}
	return nil
}

// Stop halts the device and releases the malgo context. Only called at
// process shutdown -- per spec §4.1, ambience never stops mid-session.
func (d *Device) Stop() error {
	d.device.Uninit()
	return d.ctx.Uninit()
}
