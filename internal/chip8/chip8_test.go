package chip8

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestMachine(t *testing.T, data []byte) *Chip8 {
	t.Helper()
	c := NewChip8(Quirks{})
	c.LoadRom(Rom{Data: data})
	return &c
}

func TestChip8_Step(t *testing.T) {
	t.Parallel()

	t.Run("00E0 clears the screen", func(t *testing.T) {
		c := newTestMachine(t, []byte{0x00, 0xe0})
		for i := 0; i < ScreenSize; i++ {
			c.Screen[i] = true
		}

		c.Step()

		for i := 0; i < ScreenSize; i++ {
			require.False(t, c.Screen[i])
		}
	})

	t.Run("00E0 applied twice equals once", func(t *testing.T) {
		c := newTestMachine(t, []byte{0x00, 0xe0, 0x00, 0xe0})
		c.Screen[5] = true

		c.Step()
		c.Step()

		require.False(t, c.Screen[5])
	})

	t.Run("1NNN jumps to NNN", func(t *testing.T) {
		c := newTestMachine(t, []byte{0x1c, 0xfe})

		c.Step()

		require.EqualValues(t, 0x0cfe, c.pc)
	})

	t.Run("2NNN calls and 00EE returns", func(t *testing.T) {
		c := newTestMachine(t, []byte{
			0x22, 0x06, // 0x200: call 0x206
			0x60, 0x99, // 0x202: v[0] = 0x99 (skipped until return)
			0x00, 0x00, // 0x204: nop
			0x60, 0x11, // 0x206: v[0] = 0x11
			0x00, 0xee, // 0x208: return
		})

		c.Step() // call 0x206
		require.EqualValues(t, 0x206, c.pc)
		require.EqualValues(t, 1, c.sp)

		c.Step() // v[0] = 0x11
		require.EqualValues(t, 0x11, c.regsV[0])

		c.Step() // return to 0x202
		require.EqualValues(t, 0x202, c.pc)
		require.EqualValues(t, 0, c.sp)
	})

	t.Run("00EE on an empty stack faults", func(t *testing.T) {
		c := newTestMachine(t, []byte{0x00, 0xee})

		c.Step()

		require.Equal(t, StateQuit, c.State)
		require.Error(t, c.Err(), "a fault must be reported even with no tracer attached")
		require.ErrorIs(t, c.Err(), ErrStackUnderflow)
	})

	t.Run("2NNN overflows the stack at capacity", func(t *testing.T) {
		prog := make([]byte, 0, StackMaxSize*2+2)
		for i := 0; i < StackMaxSize+1; i++ {
			prog = append(prog, 0x22, 0x00) // call self
		}
		c := newTestMachine(t, prog)

		for i := 0; i < StackMaxSize; i++ {
			c.Step()
			require.Equal(t, StateRunning, c.State)
		}

		c.Step()
		require.Equal(t, StateQuit, c.State)
		require.ErrorIs(t, c.Err(), ErrStackOverflow)
	})

	t.Run("3XNN skips when equal", func(t *testing.T) {
		c := newTestMachine(t, []byte{
			0x60, 0x11, // v0 = 0x11
			0x30, 0x11, // skip next because v0 == 0x11
			0x60, 0x99, // v0 = 0x99 (skipped)
		})
		c.Step()
		c.Step()
		c.Step()
		require.EqualValues(t, 0x11, c.regsV[0])
	})

	t.Run("4XNN skips when not equal", func(t *testing.T) {
		c := newTestMachine(t, []byte{
			0x60, 0x11, // v0 = 0x11
			0x40, 0x12, // skip next because v0 != 0x12
			0x60, 0x99, // v0 = 0x99 (skipped)
		})
		c.Step()
		c.Step()
		c.Step()
		require.EqualValues(t, 0x11, c.regsV[0])
	})

	t.Run("5XY0 skips when equal", func(t *testing.T) {
		c := newTestMachine(t, []byte{
			0x60, 0x11, // v0 = 0x11
			0x61, 0x11, // v1 = 0x11
			0x50, 0x10, // skip next because v0 == v1
			0x60, 0x99, // v0 = 0x99 (skipped)
		})
		c.Step()
		c.Step()
		c.Step()
		c.Step()
		require.EqualValues(t, 0x11, c.regsV[0])
	})

	t.Run("7XNN wraps and never touches VF", func(t *testing.T) {
		c := newTestMachine(t, []byte{
			0x6f, 0x01, // vf = 1 (sentinel)
			0x60, 0xff, // v0 = 0xff
			0x70, 0x02, // v0 += 2 (wraps to 0x01)
		})
		c.Step()
		c.Step()
		c.Step()
		require.EqualValues(t, 0x01, c.regsV[0])
		require.EqualValues(t, 0x01, c.regsV[0xf], "7XNN must not touch VF")
	})

	t.Run("8XY4 sets VF on carry", func(t *testing.T) {
		c := newTestMachine(t, []byte{
			0x60, 0xff, // v0 = 0xff
			0x61, 0x01, // v1 = 0x01
			0x80, 0x14, // v0 += v1
		})
		c.Step()
		c.Step()
		c.Step()
		require.EqualValues(t, 0x00, c.regsV[0])
		require.EqualValues(t, 1, c.regsV[0xf])
	})

	t.Run("8XY5 clears VF on borrow", func(t *testing.T) {
		c := newTestMachine(t, []byte{
			0x60, 0x10, // v0 = 0x10
			0x61, 0x20, // v1 = 0x20
			0x80, 0x15, // v0 -= v1
		})
		c.Step()
		c.Step()
		c.Step()
		require.EqualValues(t, 0xf0, c.regsV[0])
		require.EqualValues(t, 0, c.regsV[0xf])
	})

	t.Run("8XY3 xor with self zeroes the register", func(t *testing.T) {
		c := newTestMachine(t, []byte{
			0x60, 0x5a, // v0 = 0x5a
			0x80, 0x03, // v0 ^= v0
		})
		c.Step()
		c.Step()
		require.EqualValues(t, 0, c.regsV[0])
	})

	t.Run("8XY6 default shifts VX, ignoring VY", func(t *testing.T) {
		c := newTestMachine(t, []byte{
			0x60, 0x11, // v0 = 0x11 (0b10001)
			0x61, 0xff, // v1 = 0xff
			0x80, 0x16, // vf = v0 & 1; v0 >>= 1
		})
		c.Step()
		c.Step()
		c.Step()
		require.EqualValues(t, 0x11>>1, c.regsV[0])
		require.EqualValues(t, 1, c.regsV[0xf])
	})

	t.Run("8XY6 quirk shifts VY into VX", func(t *testing.T) {
		c := newTestMachine(t, []byte{
			0x60, 0x10, // v0 = 0x10
			0x61, 0x03, // v1 = 0x03 (0b11)
			0x80, 0x16, // vf = v1 & 1; v0 = v1 >> 1
		})
		c.Quirks.ShiftUsesVY = true
		c.Step()
		c.Step()
		c.Step()
		require.EqualValues(t, 0x03>>1, c.regsV[0])
		require.EqualValues(t, 1, c.regsV[0xf])
	})

	t.Run("8XYE shifts left and captures the high bit", func(t *testing.T) {
		c := newTestMachine(t, []byte{
			0x60, 0x82, // v0 = 0x82
			0x80, 0x1e, // vf = msb; v0 <<= 1
		})
		c.Step()
		c.Step()
		require.EqualValues(t, 0x04, c.regsV[0]) // 0x82 << 1, truncated to 8 bits
		require.EqualValues(t, 1, c.regsV[0xf])
	})

	t.Run("9XY0 skips when not equal", func(t *testing.T) {
		c := newTestMachine(t, []byte{
			0x60, 0x11, // v0 = 0x11
			0x61, 0x14, // v1 = 0x14
			0x90, 0x10, // skip next because v0 != v1
			0x00, 0xe0, // (skipped)
		})
		c.Screen[0] = true
		c.Step()
		c.Step()
		c.Step()
		c.Step()
		require.True(t, c.Screen[0])
	})

	t.Run("ANNN sets I", func(t *testing.T) {
		c := newTestMachine(t, []byte{0xa1, 0x89})
		c.Step()
		require.EqualValues(t, 0x189, c.regI)
	})

	t.Run("BNNN default jumps to NNN+V0", func(t *testing.T) {
		c := newTestMachine(t, []byte{
			0x60, 0x06, // v0 = 0x06
			0xb2, 0x00, // jump to 0x206
		})
		c.Step()
		c.Step()
		require.EqualValues(t, 0x206, c.pc)
	})

	t.Run("BNNN quirk jumps to NNN+VX", func(t *testing.T) {
		c := newTestMachine(t, []byte{
			0x60, 0x06, // v0 = 0x06 (ignored under the quirk)
			0x63, 0x02, // v3 = 0x02
			0xb3, 0x00, // jump to 0x300 + v3 = 0x302
		})
		c.Quirks.JumpUsesVX = true
		c.Step()
		c.Step()
		c.Step()
		require.EqualValues(t, 0x302, c.pc)
	})

	t.Run("CXNN masks the random byte with NN", func(t *testing.T) {
		c := newTestMachine(t, []byte{0xc0, 0x0f})
		for seed := uint64(0); seed < 20; seed++ {
			c.SeedRandom(seed, seed+1)
			c.pc = EntryPoint
			c.Step()
			require.LessOrEqual(t, c.regsV[0], uint8(0x0f))
		}
	})

	t.Run("EX9E skips when the key is pressed", func(t *testing.T) {
		c := newTestMachine(t, []byte{
			0xe0, 0x9e, // skip next if keypad[v0] pressed
			0x00, 0xe0, // (skipped)
		})
		c.KeyPad[0] = true
		c.Screen[0] = true
		c.Step()
		c.Step()
		require.True(t, c.Screen[0])
	})

	t.Run("EXA1 skips when the key is not pressed", func(t *testing.T) {
		c := newTestMachine(t, []byte{
			0xe0, 0xa1, // skip next if keypad[v0] not pressed
			0x00, 0xe0, // (skipped)
		})
		c.Screen[0] = true
		c.Step()
		c.Step()
		require.True(t, c.Screen[0])
	})

	t.Run("FX07 reads the delay timer", func(t *testing.T) {
		c := newTestMachine(t, []byte{0xf0, 0x07})
		c.delayTimer = 8
		c.Step()
		require.EqualValues(t, 8, c.regsV[0])
	})

	t.Run("FX0A blocks until a key is held", func(t *testing.T) {
		c := newTestMachine(t, []byte{0xf0, 0x0a})

		c.Step()
		require.EqualValues(t, EntryPoint, c.pc, "replays until a key is held")

		c.KeyPad[0x7] = true
		c.Step()
		require.EqualValues(t, EntryPoint+2, c.pc)
		require.EqualValues(t, 0x7, c.regsV[0])
	})

	t.Run("FX1E adds VX into I with no carry flag", func(t *testing.T) {
		c := newTestMachine(t, []byte{
			0x60, 0xff, // v0 = 0xff
			0xa0, 0xff, // i = 0xff
			0xf0, 0x1e, // i += v0
		})
		c.regsV[0xf] = 0x42
		c.Step()
		c.Step()
		c.Step()
		require.EqualValues(t, 0x1fe, c.regI)
		require.EqualValues(t, 0x42, c.regsV[0xf], "FX1E must not touch VF")
	})

	t.Run("FX29 points I at the font glyph", func(t *testing.T) {
		c := newTestMachine(t, []byte{
			0x60, 0x03, // v0 = 3
			0xf0, 0x29, // i = font address of glyph 3
		})
		c.Step()
		c.Step()
		require.EqualValues(t, 3*5, c.regI)
	})

	t.Run("FX33 writes the BCD digits of 255", func(t *testing.T) {
		c := newTestMachine(t, []byte{
			0x60, 0xff, // v0 = 255
			0xa3, 0x00, // i = 0x300
			0xf0, 0x33, // bcd(v0) -> mem[i..i+2]
		})
		c.Step()
		c.Step()
		c.Step()
		require.EqualValues(t, 2, c.ram[0x300])
		require.EqualValues(t, 5, c.ram[0x301])
		require.EqualValues(t, 5, c.ram[0x302])
	})

	t.Run("FX55 stores V0..VX and leaves I unchanged by default", func(t *testing.T) {
		c := newTestMachine(t, []byte{
			0x60, 0x11, // v0 = 0x11
			0x61, 0x22, // v1 = 0x22
			0xa3, 0x00, // i = 0x300
			0xf1, 0x55, // mem[i..i+1] = v0, v1
		})
		c.Step()
		c.Step()
		c.Step()
		c.Step()
		require.EqualValues(t, 0x11, c.ram[0x300])
		require.EqualValues(t, 0x22, c.ram[0x301])
		require.EqualValues(t, 0x300, c.regI)
	})

	t.Run("FX55 quirk increments I by X+1", func(t *testing.T) {
		c := newTestMachine(t, []byte{
			0x60, 0x11, // v0 = 0x11
			0x61, 0x22, // v1 = 0x22
			0xa3, 0x00, // i = 0x300
			0xf1, 0x55, // mem[i..i+1] = v0, v1
		})
		c.Quirks.LoadStoreIncrementsI = true
		c.Step()
		c.Step()
		c.Step()
		c.Step()
		require.EqualValues(t, 0x302, c.regI)
	})

	t.Run("FX65 loads V0..VX and leaves I unchanged by default", func(t *testing.T) {
		c := newTestMachine(t, []byte{
			0xa3, 0x00, // i = 0x300
			0xf1, 0x65, // v0, v1 = mem[i..i+1]
		})
		c.ram[0x300] = 0x33
		c.ram[0x301] = 0x44
		c.Step()
		c.Step()
		require.EqualValues(t, 0x33, c.regsV[0])
		require.EqualValues(t, 0x44, c.regsV[1])
		require.EqualValues(t, 0x300, c.regI)
	})
}

func TestChip8_TickTimers(t *testing.T) {
	t.Parallel()

	c := newTestMachine(t, nil)
	c.delayTimer = 2
	c.soundTimer = 1

	c.TickTimers()
	require.EqualValues(t, 1, c.delayTimer)
	require.EqualValues(t, 0, c.soundTimer)
	require.False(t, c.SoundActive())

	c.TickTimers()
	require.EqualValues(t, 0, c.delayTimer)

	// saturates at zero, never wraps.
	c.TickTimers()
	require.EqualValues(t, 0, c.delayTimer)
}

func TestChip8_RunFrame_PausedSkipsEverything(t *testing.T) {
	t.Parallel()

	c := newTestMachine(t, []byte{0x60, 0x11})
	c.delayTimer = 5
	c.State = StatePaused

	c.RunFrame(10)

	require.EqualValues(t, 0, c.regsV[0], "no instructions should have executed")
	require.EqualValues(t, 5, c.delayTimer, "timers should not tick while paused")
}

func TestChip8_RunFrame_StepsThenTicksOnce(t *testing.T) {
	t.Parallel()

	c := newTestMachine(t, []byte{
		0x60, 0x01, // v0 = 1
		0x70, 0x01, // v0 += 1
		0x70, 0x01, // v0 += 1
	})
	c.delayTimer = 10

	c.RunFrame(3)

	require.EqualValues(t, 3, c.regsV[0])
	require.EqualValues(t, 9, c.delayTimer, "exactly one tick regardless of instruction count")
}

func TestChip8_TogglePause(t *testing.T) {
	t.Parallel()

	c := NewChip8(Quirks{})
	require.Equal(t, StateRunning, c.GetState())

	c.TogglePause()
	require.Equal(t, StatePaused, c.GetState())

	c.TogglePause()
	require.Equal(t, StateRunning, c.GetState())

	c.RequestQuit()
	c.TogglePause()
	require.Equal(t, StateQuit, c.GetState(), "toggling pause after quit is a no-op")
	require.NoError(t, c.Err(), "a host-requested quit is not a fault")
}
