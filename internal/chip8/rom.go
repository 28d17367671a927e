package chip8

import (
	"fmt"
	"os"
	"path"
)

// Rom is a ROM image read from disk, ready to be handed to
// (*Chip8).LoadRom.
type Rom struct {
	Name string
	Data []byte
}

// NewRomFromFile reads the file at romPath and validates that it fits
// in the space between EntryPoint and the end of RAM. It does not
// inspect the instruction content of the ROM in any way.
func NewRomFromFile(romPath string) (Rom, error) {
	data, err := os.ReadFile(romPath)
	if err != nil {
		return Rom{}, fmt.Errorf("%w: %s: %s", ErrRomUnreadable, romPath, err.Error())
	}

	if len(data) > RomMaxSizeBytes {
		return Rom{}, fmt.Errorf("%w: %s is %d bytes, max size is %d bytes",
			ErrRomTooLarge, romPath, len(data), RomMaxSizeBytes,
		)
	}

	return Rom{
		Name: path.Base(romPath),
		Data: data,
	}, nil
}
