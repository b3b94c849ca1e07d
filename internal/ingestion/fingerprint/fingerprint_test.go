package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeIsStableAcrossVolatileDetails(t *testing.T) {
	stackA := "at handler.Process (/app/handler.go:142)\nat main.main (/app/main.go:0x7f3c1a2b)"
	stackB := "at handler.Process (/app/handler.go:200)\nat main.main (/app/main.go:0x9ab1cd00)"

	fpA := Compute("ValueError", stackA, "python")
	fpB := Compute("ValueError", stackB, "python")

	assert.Equal(t, fpA, fpB, "fingerprints should ignore line numbers and addresses")
	assert.Len(t, fpA, 64)
}

func TestComputeDiffersForDifferentErrorTypes(t *testing.T) {
	stack := "at handler.Process (/app/handler.go:1)"
	fpA := Compute("ValueError", stack, "python")
	fpB := Compute("TypeError", stack, "python")
	assert.NotEqual(t, fpA, fpB)
}

func TestComputeDiffersForDifferentTopFrames(t *testing.T) {
	fpA := Compute("ValueError", "at a.One\nat b.Two", "python")
	fpB := Compute("ValueError", "at a.Three\nat b.Two", "python")
	assert.NotEqual(t, fpA, fpB)
}
