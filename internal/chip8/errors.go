package chip8

import "errors"

// Sentinel errors returned by the loader and the executor. Wrap these
// with fmt.Errorf("%w: ...") when extra context (path, PC, opcode) is
// useful to the caller.
var (
	// ErrRomUnreadable is returned when the ROM file could not be read
	// from disk.
	ErrRomUnreadable = errors.New("rom is unreadable")

	// ErrRomTooLarge is returned when a ROM does not fit between
	// EntryPoint and the end of RAM.
	ErrRomTooLarge = errors.New("rom is too large")

	// ErrStackOverflow is returned by CALL (2NNN) when the call stack
	// is already at StackMaxSize.
	ErrStackOverflow = errors.New("stack overflow")

	// ErrStackUnderflow is returned by RET (00EE) when the call stack
	// is empty.
	ErrStackUnderflow = errors.New("stack underflow")
)
