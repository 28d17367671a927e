// Package renderer is the ebiten-backed host surface for the CHIP-8
// core: it presents the framebuffer, polls keyboard input into the
// machine's keypad, drives the tone generator from the sound timer,
// and implements the run loop's per-frame ordering (drain input, step
// N instructions if running, tick timers, present) on top of ebiten's
// own frame pacing.
package renderer

import (
	"encoding/hex"
	"fmt"
	"image/color"
	"log"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"github.com/nevisdale/chip8run/internal/beep"
	"github.com/nevisdale/chip8run/internal/chip8"
)

// ====================
// keyboard key mapping
// ====================
//
//	1 2 3 C  -> 1 2 3 4
//	4 5 6 D  -> Q W E R
//	7 8 9 E  -> A S D F
//	A 0 B F  -> Z X C V
var keyboardMapping = map[uint8]ebiten.Key{
	0x1: ebiten.Key1, 0x2: ebiten.Key2, 0x3: ebiten.Key3, 0xC: ebiten.Key4,
	0x4: ebiten.KeyQ, 0x5: ebiten.KeyW, 0x6: ebiten.KeyE, 0xD: ebiten.KeyR,
	0x7: ebiten.KeyA, 0x8: ebiten.KeyS, 0x9: ebiten.KeyD, 0xE: ebiten.KeyF,
	0xA: ebiten.KeyZ, 0x0: ebiten.KeyX, 0xB: ebiten.KeyC, 0xF: ebiten.KeyV,
}

var (
	buttonReleasedColor color.Color = MustDecodeColorFromHex("999999")
	buttonPressedColor  color.Color = MustDecodeColorFromHex("65f057")
	gridColor           color.Color = MustDecodeColorFromHex("222222")
)

// Config holds the presentation knobs exposed on the CLI.
type Config struct {
	FgColor color.Color
	BgColor color.Color

	// Scale is the integer factor applied to the logical 64x32
	// framebuffer when presented in the window.
	Scale int

	// Grid draws a one-pixel gridline between logical pixels when
	// Scale is large enough to make it legible.
	Grid bool

	// InstructionsPerSecond is the executor's target IPS; instructions
	// per frame is derived from it and the fixed 60 Hz frame rate.
	InstructionsPerSecond int
}

// Renderer is the ebiten Game implementation wrapping a Chip8.
type Renderer struct {
	chip8 *chip8.Chip8
	beep  *beep.Beep

	conf Config

	keypadMode bool
}

// New builds a Renderer bound to vm. b may be nil to run silently
// (e.g. under test or in environments without an audio device).
func New(vm *chip8.Chip8, b *beep.Beep, conf Config) *Renderer {
	if conf.Scale <= 0 {
		conf.Scale = 10
	}
	if conf.InstructionsPerSecond <= 0 {
		conf.InstructionsPerSecond = chip8.DefaultIPS
	}

	return &Renderer{
		chip8: vm,
		beep:  b,
		conf:  conf,
	}
}

func (r *Renderer) instructionsPerFrame() int {
	perFrame := r.conf.InstructionsPerSecond / chip8.TimerHz
	if perFrame < 1 {
		perFrame = 1
	}
	return perFrame
}

// Update implements ebiten.Game. It follows the run loop's ordering
// guarantee: drain input and state-toggle keys first, then (if
// running) step a batch of instructions, tick the timers once, and
// sync the tone generator — all before ebiten calls Draw.
func (r *Renderer) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		r.chip8.RequestQuit()
	}
	if r.chip8.GetState() == chip8.StateQuit {
		// ebiten.Termination always makes RunGame return nil, so a
		// clean quit and a faulted one (stack overflow/underflow) look
		// identical from here. Callers distinguish them afterward via
		// Chip8.Err.
		return ebiten.Termination
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		r.chip8.TogglePause()
		r.setWindowTitle()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyK) {
		r.keypadMode = !r.keypadMode
	}
	if r.beep != nil {
		switch {
		case inpututil.IsKeyJustPressed(ebiten.Key0):
			r.beep.VolumeUp()
		case inpututil.IsKeyJustPressed(ebiten.Key9):
			r.beep.VolumeDown()
		}
	}

	for chip8Key, ebitenKey := range keyboardMapping {
		r.chip8.SetKey(chip8Key, ebiten.IsKeyPressed(ebitenKey))
	}

	r.chip8.RunFrame(r.instructionsPerFrame())

	if r.beep != nil {
		r.beep.Sync(r.chip8.SoundActive())
	}

	return nil
}

// Draw implements ebiten.Game.
func (r *Renderer) Draw(screen *ebiten.Image) {
	scale := r.conf.Scale

	for x := 0; x < r.chip8.ScreenWidth(); x++ {
		for y := 0; y < r.chip8.ScreenHeight(); y++ {
			pixelColor := r.conf.BgColor
			if r.chip8.ScreenPixelSetAt(x, y) {
				pixelColor = r.conf.FgColor
			}
			vector.DrawFilledRect(screen,
				float32(x*scale), float32(y*scale),
				float32(scale), float32(scale),
				pixelColor, false,
			)
		}
	}

	if r.conf.Grid && scale >= 4 {
		r.drawGrid(screen)
	}

	if r.keypadMode {
		r.drawKeypad(screen)
	}
}

func (r *Renderer) drawGrid(screen *ebiten.Image) {
	scale := r.conf.Scale
	w, h := r.chip8.ScreenWidth()*scale, r.chip8.ScreenHeight()*scale

	for x := 0; x <= r.chip8.ScreenWidth(); x++ {
		vector.StrokeLine(screen, float32(x*scale), 0, float32(x*scale), float32(h), 1, gridColor, false)
	}
	for y := 0; y <= r.chip8.ScreenHeight(); y++ {
		vector.StrokeLine(screen, 0, float32(y*scale), float32(w), float32(y*scale), 1, gridColor, false)
	}
}

var keyboardPosition = map[uint8]uint8{
	0x0: 0x1, 0x1: 0x2, 0x2: 0x3, 0x3: 0xC,
	0x4: 0x4, 0x5: 0x5, 0x6: 0x6, 0x7: 0xD,
	0x8: 0x7, 0x9: 0x8, 0xA: 0x9, 0xB: 0xE,
	0xC: 0xA, 0xD: 0x0, 0xE: 0xB, 0xF: 0xF,
}

func (r *Renderer) drawKeypad(screen *ebiten.Image) {
	buttonsInRow := 4
	buttonSize := r.conf.Scale / 2
	if buttonSize < 4 {
		buttonSize = 4
	}

	screenOffsetX := (r.chip8.ScreenWidth()*r.conf.Scale - (buttonsInRow*buttonSize + buttonsInRow - 1)) >> 1
	screenOffsetY := r.chip8.ScreenHeight()*r.conf.Scale + 4

	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			pixelColor := buttonReleasedColor
			key := y<<2 | x&0xf
			if r.chip8.KeyIsPressed(keyboardPosition[uint8(key)]) {
				pixelColor = buttonPressedColor
			}

			posX := screenOffsetX + (x * (buttonSize + 1))
			posY := screenOffsetY + (y * (buttonSize + 1))

			vector.DrawFilledRect(screen,
				float32(posX), float32(posY),
				float32(buttonSize), float32(buttonSize),
				pixelColor, false,
			)
		}
	}
}

// Layout implements ebiten.Game.
func (r *Renderer) Layout(int, int) (int, int) {
	w := r.chip8.ScreenWidth() * r.conf.Scale
	h := r.chip8.ScreenHeight() * r.conf.Scale
	if r.keypadMode {
		h += (r.conf.Scale/2 + 2) * 4
	}
	return w, h
}

// Run starts ebiten's main loop. It blocks until the window is closed
// or the machine requests quit.
func (r *Renderer) Run() error {
	ebiten.SetTPS(chip8.TimerHz)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSize(r.Layout(0, 0))
	r.setWindowTitle()

	if err := ebiten.RunGame(r); err != nil {
		return fmt.Errorf("run renderer: %w", err)
	}
	return nil
}

func (r *Renderer) setWindowTitle() {
	ebiten.SetWindowTitle("chip8run: " + r.chip8.GetRomName() + " [" + r.chip8.GetState().String() + "]")
}

func MustDecodeColorFromHex(s string) color.Color {
	c, err := DecodeColorFromHex(s)
	if err != nil {
		log.Fatal(err.Error())
	}
	return c
}

func DecodeColorFromHex(s string) (color.Color, error) {
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("couldn't decode a hex string: %w", err)
	}
	if len(data) != 3 && len(data) != 4 {
		return nil, fmt.Errorf("color must be in rgb or rgba format")
	}

	c := color.RGBA{
		R: data[0],
		G: data[1],
		B: data[2],
		A: 0xff,
	}
	if len(data) == 4 {
		c.A = data[3]
	}

	return c, nil
}
