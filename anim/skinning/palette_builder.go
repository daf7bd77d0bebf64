package skinning

import (
	"github.com/go-gl/mathgl/mgl32"
)

// PaletteBuilderOption is a functional option for configuring a Palette.
// Use the With* functions to create options.
type PaletteBuilderOption func(p *paletteImpl)

// WithInverseBind overrides the derived inverse bind matrices with authored
// ones, as exported by an asset pipeline. Slices whose length does not match
// the bone count are ignored.
//
// Parameters:
//   - matrices: one inverse bind matrix per bone in index order
//
// Returns:
//   - PaletteBuilderOption: option function to apply
func WithInverseBind(matrices []mgl32.Mat4) PaletteBuilderOption {
	return func(p *paletteImpl) {
		if len(matrices) != len(p.inverseBind) {
			return
		}
		copy(p.inverseBind, matrices)
	}
}
