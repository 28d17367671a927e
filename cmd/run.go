package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nevisdale/chip8run/internal/beep"
	"github.com/nevisdale/chip8run/internal/chip8"
	"github.com/nevisdale/chip8run/internal/renderer"
	"github.com/nevisdale/chip8run/internal/trace"
)

var (
	flagScale   int
	flagIPS     int
	flagFgColor string
	flagBgColor string
	flagGrid    bool
	flagTrace   bool

	flagQuirkShiftVY    bool
	flagQuirkLoadStoreI bool
	flagQuirkJumpVX     bool
)

// runCmd loads a ROM and runs it against the CHIP-8 core until the
// window is closed or the user presses escape.
var runCmd = &cobra.Command{
	Use:   "run path/to/rom",
	Short: "run a ROM against the chip8run interpreter",
	Args:  cobra.ExactArgs(1),
	RunE:  runChip8,
}

func init() {
	runCmd.Flags().IntVar(&flagScale, "scale", 10, "integer scale factor applied to the 64x32 display")
	runCmd.Flags().IntVar(&flagIPS, "ips", chip8.DefaultIPS, "target instructions executed per second")
	runCmd.Flags().StringVar(&flagFgColor, "fg", "FFFFFFFF", "foreground rgb(a) color in hex")
	runCmd.Flags().StringVar(&flagBgColor, "bg", "000000FF", "background rgb(a) color in hex")
	runCmd.Flags().BoolVar(&flagGrid, "grid", false, "draw gridlines between logical pixels")
	runCmd.Flags().BoolVar(&flagTrace, "trace", false, "trace every executed instruction to stderr on exit")

	runCmd.Flags().BoolVar(&flagQuirkShiftVY, "quirk-shift-vy", false, "8XY6/8XYE read VY instead of VX (COSMAC-VIP)")
	runCmd.Flags().BoolVar(&flagQuirkLoadStoreI, "quirk-load-store-increment", false, "FX55/FX65 increment I by X+1 (COSMAC-VIP)")
	runCmd.Flags().BoolVar(&flagQuirkJumpVX, "quirk-jump-vx", false, "BNNN adds VX instead of V0 (SCHIP)")
}

func runChip8(cmd *cobra.Command, args []string) error {
	fgColor, err := renderer.DecodeColorFromHex(flagFgColor)
	if err != nil {
		return fmt.Errorf("couldn't decode fg color from hex %s: %w", flagFgColor, err)
	}
	bgColor, err := renderer.DecodeColorFromHex(flagBgColor)
	if err != nil {
		return fmt.Errorf("couldn't decode bg color from hex %s: %w", flagBgColor, err)
	}

	rom, err := chip8.NewRomFromFile(args[0])
	if err != nil {
		return fmt.Errorf("couldn't load rom: %w", err)
	}

	quirks := chip8.Quirks{
		ShiftUsesVY:          flagQuirkShiftVY,
		LoadStoreIncrementsI: flagQuirkLoadStoreI,
		JumpUsesVX:           flagQuirkJumpVX,
	}

	vm := chip8.NewChip8(quirks)
	vm.LoadRom(rom)

	var logger *trace.Logger
	if flagTrace {
		logger = trace.NewLogger()
		vm.SetTracer(logger)
	}
	defer flushTrace(logger)

	// flush the trace buffer on Ctrl-C/SIGTERM too, since a signal would
	// otherwise end the process without running the deferred flush.
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigc
		flushTrace(logger)
		os.Exit(0)
	}()

	b, err := beep.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "couldn't initialize audio, continuing silently: %s\n", err.Error())
	}

	r := renderer.New(&vm, b, renderer.Config{
		FgColor:               fgColor,
		BgColor:               bgColor,
		Scale:                 flagScale,
		Grid:                  flagGrid,
		InstructionsPerSecond: flagIPS,
	})

	if err := r.Run(); err != nil {
		return fmt.Errorf("couldn't run renderer: %w", err)
	}

	// the renderer returns nil on any StateQuit, clean or faulted
	// (ebiten.RunGame can't tell them apart), so the faulted case is
	// only visible here, on the machine itself.
	if err := vm.Err(); err != nil {
		return fmt.Errorf("machine halted: %w", err)
	}

	return nil
}

func flushTrace(logger *trace.Logger) {
	if logger == nil {
		return
	}
	for _, line := range logger.Lines() {
		fmt.Fprintln(os.Stderr, line)
	}
}
