// Package audiodev implements the audio output side of the APU's Device
// interface: an ebitengine/oto-backed device that plays the APU's mixed
// stereo stream through the host's default audio device, plus the null
// device substituted on open failure.
package audiodev

import (
	"encoding/binary"
	"fmt"

	"github.com/ebitengine/oto/v3"
	"github.com/kestrelbit/gbcore/internal/apu"
)

// Device is the sink the APU's mixer pulls samples into: SampleRate,
// BlockSize, Open(pull), Close(). apu.Device already describes this
// contract exactly; Device is an alias so gameboy.Emulator's external API
// can be expressed in this package's terms per the embedding API.
type Device = apu.Device

// NullDevice discards audio, substituted automatically when Open fails
// (spec: "the null audio device is substituted").
type NullDevice = apu.NullDevice

// OtoDevice plays the APU's output through the host's default audio
// device via github.com/ebitengine/oto/v3.
type OtoDevice struct {
	sampleRate int
	blockSize  int

	ctx    *oto.Context
	player *oto.Player
}

// NewOtoDevice returns a Device that opens an oto context at sampleRate,
// pulling blockSize stereo frames per read.
func NewOtoDevice(sampleRate, blockSize int) *OtoDevice {
	return &OtoDevice{sampleRate: sampleRate, blockSize: blockSize}
}

// SampleRate returns the rate Open will request from the host device.
func (d *OtoDevice) SampleRate() int { return d.sampleRate }

// BlockSize returns the number of stereo frames pulled per Read.
func (d *OtoDevice) BlockSize() int { return d.blockSize }

// Open starts an oto context and a player that streams from pull.
func (d *OtoDevice) Open(pull func(out []int16)) error {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   d.sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return fmt.Errorf("audiodev: open oto context: %w", err)
	}
	<-ready

	d.ctx = ctx
	d.player = ctx.NewPlayer(&pullReader{pull: pull, blockSize: d.blockSize})
	d.player.Play()
	return nil
}

// Close stops playback. Safe to call without a prior successful Open.
func (d *OtoDevice) Close() {
	if d.player != nil {
		d.player.Close()
		d.player = nil
	}
}

// pullReader adapts the APU's interleaved-int16 pull callback to the
// io.Reader shape oto.Player streams little-endian bytes from. Grounded on
// the teacher's apuStream (internal/ui/audio.go), generalized to pull
// through the apu.Device callback contract instead of reaching into
// emu.Machine's buffered-sample accessors directly.
type pullReader struct {
	pull      func(out []int16)
	blockSize int
	scratch   []int16
}

func (r *pullReader) Read(p []byte) (int, error) {
	frames := len(p) / 4
	if frames == 0 {
		return 0, nil
	}
	if frames > r.blockSize {
		frames = r.blockSize
	}
	if cap(r.scratch) < frames*2 {
		r.scratch = make([]int16, frames*2)
	}
	buf := r.scratch[:frames*2]
	r.pull(buf)
	for i, s := range buf {
		binary.LittleEndian.PutUint16(p[i*2:], uint16(s))
	}
	return frames * 4, nil
}
