// Package chip8 implements the CHIP-8 virtual machine: memory, register
// file, subroutine stack, timers, keypad state, and the fetch/decode/
// execute pipeline together with the sprite XOR blitter used by the
// draw opcode.
//
// The package knows nothing about windowing, audio, or input devices.
// Callers (see internal/renderer) poll real input into SetKey, call
// Step and TickTimers on their own schedule, and read Screen to
// present a frame.
package chip8

import (
	"fmt"
	v2 "math/rand/v2"
)

const (
	RamSizeBytes = 0x1000 // 4096
	EntryPoint   = 0x200  // 512

	// from 0x000 to 0x1FF is reserved for the interpreter (font table
	// plus historical interpreter working space).
	//
	// see more http://devernay.free.fr/hacks/chip8/C8TECH10.HTM#2.1
	RomMaxSizeBytes = RamSizeBytes - EntryPoint

	// The original CHIP-8 display is 64x32, monochrome.
	ScreenWidth  = 64
	ScreenHeight = 32
	ScreenSize   = ScreenWidth * ScreenHeight

	// see more http://devernay.free.fr/hacks/chip8/C8TECH10.HTM#2.3
	KeyPadSize = 0x10

	// Timers decrement at 60 Hz, independent of the instruction rate.
	//
	// see more http://devernay.free.fr/hacks/chip8/C8TECH10.HTM#2.5
	TimerHz = 60

	// DefaultIPS is the default instructions-per-second execution
	// target; typical CHIP-8 ROMs are tuned for something in the
	// 500-700 range.
	DefaultIPS = 600

	// StackMaxSize is the call stack capacity. The spec requires at
	// least 12; 16 matches the original interpreter's behavior of
	// allowing 16 levels of nested subroutine calls.
	StackMaxSize = 16
)

// font is the fixed 16-glyph, 5-byte-per-glyph hex digit font table
// stamped into RAM at address 0x000 on construction.
//
// see more http://devernay.free.fr/hacks/chip8/C8TECH10.HTM#font
var font = []byte{
	0xF0, 0x90, 0x90, 0x90, 0xF0, // 0
	0x20, 0x60, 0x20, 0x20, 0x70, // 1
	0xF0, 0x10, 0xF0, 0x80, 0xF0, // 2
	0xF0, 0x10, 0xF0, 0x10, 0xF0, // 3
	0x90, 0x90, 0xF0, 0x10, 0x10, // 4
	0xF0, 0x80, 0xF0, 0x10, 0xF0, // 5
	0xF0, 0x80, 0xF0, 0x90, 0xF0, // 6
	0xF0, 0x10, 0x20, 0x40, 0x40, // 7
	0xF0, 0x90, 0xF0, 0x90, 0xF0, // 8
	0xF0, 0x90, 0xF0, 0x10, 0xF0, // 9
	0xF0, 0x90, 0xF0, 0x90, 0x90, // A
	0xE0, 0x90, 0xE0, 0x90, 0xE0, // B
	0xF0, 0x80, 0x80, 0x80, 0xF0, // C
	0xE0, 0x90, 0x90, 0x90, 0xE0, // D
	0xF0, 0x80, 0xF0, 0x80, 0xF0, // E
	0xF0, 0x80, 0xF0, 0x80, 0x80, // F
}

// State is the run state of the machine. Only StateRunning advances PC
// or ticks timers; StatePaused still drains host input; StateQuit
// terminates the run loop.
type State int

const (
	StateRunning State = iota
	StatePaused
	StateQuit
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateQuit:
		return "quit"
	default:
		return "unknown"
	}
}

// Tracer receives one formatted line per executed instruction. It is a
// pure consumer: it never mutates machine state. See internal/trace
// for the concrete implementation used by the CLI.
type Tracer interface {
	Log(s ...string)
}

// Chip8 is the complete virtual machine state.
type Chip8 struct {
	ram [RamSizeBytes]byte
	rom Rom

	Quirks Quirks

	State State

	Screen [ScreenSize]bool
	KeyPad [KeyPadSize]bool

	// 16 general purpose 8-bit registers, V0-VF. VF doubles as the
	// flag register written implicitly by arithmetic, shift, and draw
	// opcodes.
	regsV [0x10]uint8

	// I is generally used to store a 12-bit memory address, but the
	// full 16-bit width is preserved on write.
	regI uint16

	// pc is the address of the next instruction to fetch.
	pc uint16

	// stack holds return addresses pushed by CALL and popped by RET.
	stack [StackMaxSize]uint16
	sp    uint8

	delayTimer uint8
	soundTimer uint8

	rng *v2.Rand

	tracer Tracer

	// err is set by fault and surfaces why the machine reached
	// StateQuit on its own, as opposed to a clean host-requested quit.
	err error
}

// NewChip8 constructs a machine with font table stamped into low
// memory, PC at EntryPoint, and a default-seeded PRNG. Pass a non-zero
// Quirks value to opt into COSMAC-VIP-compatible behavior for the
// documented opcode ambiguities.
func NewChip8(quirks Quirks) Chip8 {
	c := Chip8{
		Quirks: quirks,
		State:  StateRunning,
		pc:     EntryPoint,
		rng:    v2.New(v2.NewPCG(1, 2)),
	}

	copy(c.ram[:], font)

	return c
}

// SeedRandom reseeds the PRNG used by CXNN. Tests use this to make
// CXNN deterministic.
func (c *Chip8) SeedRandom(seed1, seed2 uint64) {
	c.rng = v2.New(v2.NewPCG(seed1, seed2))
}

// SetTracer attaches a Tracer that receives one line per decoded
// instruction. Pass nil to disable tracing.
func (c *Chip8) SetTracer(t Tracer) {
	c.tracer = t
}

// LoadRom copies rom into RAM starting at EntryPoint and resets PC to
// EntryPoint so a fresh machine can be reused across ROMs.
func (c *Chip8) LoadRom(rom Rom) {
	c.rom = rom
	c.pc = EntryPoint
	copy(c.ram[EntryPoint:], rom.Data)
}

// ScreenWidth, ScreenHeight report the logical display dimensions. They
// are always 64x32: CHIP-8's resolution is fixed.
func (c Chip8) ScreenWidth() int  { return ScreenWidth }
func (c Chip8) ScreenHeight() int { return ScreenHeight }

// ScreenPixelSetAt reports whether the pixel at (x, y) is on.
func (c Chip8) ScreenPixelSetAt(x, y int) bool {
	return c.Screen[y*ScreenWidth+x]
}

// KeyIsPressed reports whether the given hex key (0x0-0xF) is
// currently held.
func (c Chip8) KeyIsPressed(key uint8) bool {
	if key >= KeyPadSize {
		return false
	}
	return c.KeyPad[key]
}

// SetKey updates the held state of a single hex key. Keys outside
// 0x0-0xF are ignored.
func (c *Chip8) SetKey(key uint8, isPressed bool) {
	if key >= KeyPadSize {
		return
	}
	c.KeyPad[key] = isPressed
}

// GetRomName returns the base filename of the currently loaded ROM.
func (c Chip8) GetRomName() string {
	return c.rom.Name
}

// GetState returns the current run state.
func (c Chip8) GetState() State {
	return c.State
}

// Err returns the fault that drove the machine to StateQuit on its
// own (stack overflow/underflow), or nil if it hasn't faulted. A nil
// Err with State == StateQuit means the host requested the quit (e.g.
// the escape key), which is not an error.
func (c Chip8) Err() error {
	return c.err
}

// TogglePause flips between Running and Paused. It has no effect once
// the machine has reached Quit.
func (c *Chip8) TogglePause() {
	switch c.State {
	case StateRunning:
		c.State = StatePaused
	case StatePaused:
		c.State = StateRunning
	}
}

// RequestQuit transitions the machine to StateQuit. The run loop
// observes this and terminates before presenting the next frame.
func (c *Chip8) RequestQuit() {
	c.State = StateQuit
}

var emptyScreen [ScreenSize]bool

func (c *Chip8) clearScreen() {
	c.Screen = emptyScreen
}

// TickTimers decrements delay and sound by 1, saturating at 0. It is
// called once per frame by the run loop, independent of how many
// instructions were executed that frame, and never from within an
// opcode handler.
func (c *Chip8) TickTimers() {
	if c.delayTimer > 0 {
		c.delayTimer--
	}
	if c.soundTimer > 0 {
		c.soundTimer--
	}
}

// SoundActive reports whether the host surface should be emitting a
// tone right now.
func (c Chip8) SoundActive() bool {
	return c.soundTimer > 0
}

// RunFrame executes up to instructionsPerFrame instructions (fewer if
// the machine transitions away from Running mid-batch) and then ticks
// the timers once. It is the host-agnostic equivalent of one
// iteration of the run loop's "drain input; step N; tick timers;
// present" cycle (steps 2-3 of the ordering guarantee); callers still
// own polling input beforehand and presenting afterward.
func (c *Chip8) RunFrame(instructionsPerFrame int) {
	if c.State != StateRunning {
		return
	}

	for i := 0; i < instructionsPerFrame; i++ {
		if c.State != StateRunning {
			break
		}
		c.Step()
	}

	c.TickTimers()
}

// Step fetches, decodes, and executes exactly one instruction. PC is
// advanced by 2 before the instruction body runs (the pre-increment
// contract that makes skip/jump/return semantics straightforward), so
// that "skip" opcodes need only add 2 again and a blocking opcode like
// FX0A can rewind PC by 2 to replay itself next tick. Unknown opcodes
// are silently skipped. Step does not touch the timers; call
// TickTimers separately (or use RunFrame).
func (c *Chip8) Step() {
	if c.pc > 0xffe {
		return
	}

	word := uint16(c.ram[c.pc])<<8 | uint16(c.ram[c.pc+1])
	in := decode(word)

	c.pc += 2

	switch in.hi() {
	case 0x0:
		switch in.nn {
		case 0xe0: // 00E0: clear the screen
			c.clearScreen()
		case 0xee: // 00EE: return from a subroutine
			if c.sp == 0 {
				c.fault(ErrStackUnderflow, word)
				return
			}
			c.sp--
			c.pc = c.stack[c.sp]
		default:
			// 0NNN (call a machine-code routine) is only meaningful
			// on the original COSMAC hardware; modern interpreters
			// ignore it.
		}

	case 0x1: // 1NNN: jump to NNN
		c.pc = in.nnn

	case 0x2: // 2NNN: call subroutine at NNN
		if c.sp >= StackMaxSize {
			c.fault(ErrStackOverflow, word)
			return
		}
		c.stack[c.sp] = c.pc
		c.sp++
		c.pc = in.nnn

	case 0x3: // 3XNN: skip next if VX == NN
		if c.regsV[in.x] == in.nn {
			c.pc += 2
		}

	case 0x4: // 4XNN: skip next if VX != NN
		if c.regsV[in.x] != in.nn {
			c.pc += 2
		}

	case 0x5: // 5XY0: skip next if VX == VY
		if in.n == 0 && c.regsV[in.x] == c.regsV[in.y] {
			c.pc += 2
		}

	case 0x6: // 6XNN: VX = NN
		c.regsV[in.x] = in.nn

	case 0x7: // 7XNN: VX += NN, no flag
		c.regsV[in.x] += in.nn

	case 0x8:
		c.exec8xy(in)

	case 0x9: // 9XY0: skip next if VX != VY
		if in.n == 0 && c.regsV[in.x] != c.regsV[in.y] {
			c.pc += 2
		}

	case 0xa: // ANNN: I = NNN
		c.regI = in.nnn

	case 0xb: // BNNN: jump to NNN + V0 (or VX under the jump-uses-vx quirk)
		base := c.regsV[0]
		if c.Quirks.JumpUsesVX {
			base = c.regsV[in.x]
		}
		c.pc = (in.nnn + uint16(base)) & 0x0fff

	case 0xc: // CXNN: VX = rand8() & NN
		c.regsV[in.x] = uint8(c.rng.IntN(0x100)) & in.nn

	case 0xd: // DXYN: draw sprite
		c.drawSprite(in.x, in.y, in.n)

	case 0xe:
		switch in.nn {
		case 0x9e: // EX9E: skip next if key VX is pressed
			if c.KeyIsPressed(c.regsV[in.x] & 0x0f) {
				c.pc += 2
			}
		case 0xa1: // EXA1: skip next if key VX is not pressed
			if !c.KeyIsPressed(c.regsV[in.x] & 0x0f) {
				c.pc += 2
			}
		}

	case 0xf:
		c.execFx(in)
	}

	if c.tracer != nil {
		c.trace(word, in)
	}
}

// exec8xy dispatches the arithmetic/logic family (8XY_). Flag writes
// to VF happen after the primary write, even when X == F.
func (c *Chip8) exec8xy(in instruction) {
	switch in.n {
	case 0x0: // 8XY0: VX = VY
		c.regsV[in.x] = c.regsV[in.y]

	case 0x1: // 8XY1: VX |= VY
		c.regsV[in.x] |= c.regsV[in.y]

	case 0x2: // 8XY2: VX &= VY
		c.regsV[in.x] &= c.regsV[in.y]

	case 0x3: // 8XY3: VX ^= VY
		c.regsV[in.x] ^= c.regsV[in.y]

	case 0x4: // 8XY4: VX += VY, VF = carry
		sum := uint16(c.regsV[in.x]) + uint16(c.regsV[in.y])
		c.regsV[in.x] = uint8(sum)
		c.regsV[0xf] = boolToU8(sum > 0xff)

	case 0x5: // 8XY5: VX -= VY, VF = NOT borrow
		nb := c.regsV[in.x] >= c.regsV[in.y]
		c.regsV[in.x] = c.regsV[in.x] - c.regsV[in.y]
		c.regsV[0xf] = boolToU8(nb)

	case 0x6: // 8XY6: VF = low bit, VX >>= 1 (or VY under the shift-uses-vy quirk)
		src := c.regsV[in.x]
		if c.Quirks.ShiftUsesVY {
			src = c.regsV[in.y]
		}
		c.regsV[in.x] = src >> 1
		c.regsV[0xf] = src & 0x01

	case 0x7: // 8XY7: VX = VY - VX, VF = NOT borrow
		nb := c.regsV[in.y] >= c.regsV[in.x]
		c.regsV[in.x] = c.regsV[in.y] - c.regsV[in.x]
		c.regsV[0xf] = boolToU8(nb)

	case 0xe: // 8XYE: VF = high bit, VX <<= 1 (or VY under the shift-uses-vy quirk)
		src := c.regsV[in.x]
		if c.Quirks.ShiftUsesVY {
			src = c.regsV[in.y]
		}
		c.regsV[in.x] = src << 1
		c.regsV[0xf] = (src >> 7) & 0x01
	}
}

// execFx dispatches the FX__ family: timers, keypad block, BCD, font
// lookup, and register block transfer.
func (c *Chip8) execFx(in instruction) {
	switch in.nn {
	case 0x07: // FX07: VX = delay timer
		c.regsV[in.x] = c.delayTimer

	case 0x0a: // FX0A: block until a key is held, store its index in VX
		for i := uint8(0); i < KeyPadSize; i++ {
			if c.KeyPad[i] {
				c.regsV[in.x] = i
				return
			}
		}
		c.pc -= 2

	case 0x15: // FX15: delay timer = VX
		c.delayTimer = c.regsV[in.x]

	case 0x18: // FX18: sound timer = VX
		c.soundTimer = c.regsV[in.x]

	case 0x1e: // FX1E: I += VX, 16-bit add, no carry emitted
		c.regI += uint16(c.regsV[in.x])

	case 0x29: // FX29: I = address of the font glyph for VX's low nibble
		c.regI = uint16(c.regsV[in.x]&0x0f) * 5

	case 0x33: // FX33: BCD(VX) -> mem[I], mem[I+1], mem[I+2]
		v := c.regsV[in.x]
		c.writeMem(c.regI, v/100)
		c.writeMem(c.regI+1, (v/10)%10)
		c.writeMem(c.regI+2, v%10)

	case 0x55: // FX55: store V0..VX to mem[I..], I unmodified by default
		for i := uint16(0); i <= uint16(in.x); i++ {
			c.writeMem(c.regI+i, c.regsV[i])
		}
		if c.Quirks.LoadStoreIncrementsI {
			c.regI += uint16(in.x) + 1
		}

	case 0x65: // FX65: load V0..VX from mem[I..], I unmodified by default
		for i := uint16(0); i <= uint16(in.x); i++ {
			c.regsV[i] = c.readMem(c.regI + i)
		}
		if c.Quirks.LoadStoreIncrementsI {
			c.regI += uint16(in.x) + 1
		}
	}
}

// readMem and writeMem wrap addresses within the 4 KiB address space,
// per the rule that out-of-range memory references wrap rather than
// error (relevant to FX55/FX65/FX33 when I is close to 0xFFF).
func (c *Chip8) readMem(addr uint16) uint8 {
	return c.ram[addr&0x0fff]
}

func (c *Chip8) writeMem(addr uint16, v uint8) {
	c.ram[addr&0x0fff] = v
}

// fault terminates the machine with err, unconditionally recording the
// PC and opcode of the faulting instruction on c.err (see Err) so the
// host can report and exit non-zero even without a tracer attached.
func (c *Chip8) fault(err error, word uint16) {
	c.State = StateQuit
	c.err = fmt.Errorf("%w: pc=%s opcode=%s", err, hexWord(c.pc-2), hexWord(word))
	if c.tracer != nil {
		c.tracer.Log("fault", err.Error(), hexWord(c.pc-2), hexWord(word))
	}
}

func boolToU8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
