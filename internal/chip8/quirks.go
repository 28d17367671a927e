package chip8

// Quirks toggles the documented COSMAC-VIP / SCHIP behavioral variants
// called out in the CHIP-8 community as long-standing ambiguities.
// The zero value reproduces the modern/SCHIP-style defaults: shifts
// read VX (not VY), FX55/FX65 leave I unchanged, and BNNN adds V0 (not
// VX).
//
// see more http://devernay.free.fr/hacks/chip8/C8TECH10.HTM#2.4
type Quirks struct {
	// ShiftUsesVY makes 8XY6/8XYE read VY before shifting, as the
	// original COSMAC-VIP interpreter did, instead of shifting VX in
	// place.
	ShiftUsesVY bool

	// LoadStoreIncrementsI makes FX55/FX65 increment I by X+1 after
	// the transfer, as the original COSMAC-VIP interpreter did.
	LoadStoreIncrementsI bool

	// JumpUsesVX makes BNNN add V[X] (the SCHIP behavior) instead of
	// V[0] (the original COSMAC-VIP behavior).
	JumpUsesVX bool
}
