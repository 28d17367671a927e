// Package beep generates the CHIP-8 sound-timer tone: a fixed 440Hz
// sine wave, looped for as long as the sound timer is non-zero, with
// adjustable volume.
package beep

import (
	"bytes"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/hajimehoshi/ebiten/v2/audio"
)

const (
	sampleRate = 44100
	beepHz     = 440
	duration   = time.Second

	volumeStep = 0.2
	volumeMax  = 1.0
	volumeMin  = 0.0
)

// Beep plays a looping tone. Its only caller-visible state transition
// is on/off, driven once per frame by Sync from the current value of
// the CHIP-8 sound timer (spec's "when sound > 0, emit a tone; when it
// reaches 0, stop").
type Beep struct {
	p      *audio.Player
	active bool
}

// New builds one second of a sine wave at beepHz and wraps it in a
// looping ebiten audio player.
func New() (*Beep, error) {
	numSamples := sampleRate * int(duration.Seconds())
	buf := make([]byte, numSamples*2)
	for i := 0; i < numSamples; i++ {
		a := math.Sin(2.0 * math.Pi * float64(beepHz) * float64(i) / float64(sampleRate))
		s := int16(a * math.MaxInt16)
		buf[2*i] = byte(s)
		buf[2*i+1] = byte(s >> 8)
	}

	audioCtx := audio.NewContext(sampleRate)
	loop := audio.NewInfiniteLoop(bytes.NewReader(buf), int64(len(buf)))
	player, err := audioCtx.NewPlayer(loop)
	if err != nil {
		return nil, fmt.Errorf("couldn't create an audio player: %w", err)
	}
	player.SetBufferSize(256)

	return &Beep{p: player}, nil
}

// Sync starts the tone looping if soundActive and it isn't already
// playing, and stops it the instant soundActive goes false. Calling it
// every frame with the sound timer's nonzero-ness is the whole
// contract; Beep has no other entry point for starting/stopping.
func (b *Beep) Sync(soundActive bool) {
	switch {
	case soundActive && !b.active:
		if err := b.p.Rewind(); err != nil {
			log.Printf("couldn't rewind the audio player: %s\n", err.Error())
			return
		}
		b.p.Play()
		b.active = true
	case !soundActive && b.active:
		b.p.Pause()
		b.active = false
	}
}

func (b *Beep) VolumeUp() {
	volume := min(b.p.Volume()+volumeStep, volumeMax)
	b.p.SetVolume(volume)
}

func (b *Beep) VolumeDown() {
	volume := max(b.p.Volume()-volumeStep, volumeMin)
	b.p.SetVolume(volume)
}

func (b *Beep) SetVolume(volume float64) {
	volume = min(volume, volumeMax)
	volume = max(volume, volumeMin)
	b.p.SetVolume(volume)
}
