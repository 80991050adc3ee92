package addressnormalizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAliasesToCanonical(t *testing.T) {
	assert.Equal(t, NativeMint, Normalize(nativeMintAlias))
	assert.Equal(t, NativeMint, Normalize(NativeMint))
}

func TestNormalizePassesThroughOtherAddresses(t *testing.T) {
	other := "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"
	assert.Equal(t, other, Normalize(other))
}

func TestNormalizeIsIdempotent(t *testing.T) {
	inputs := []string{nativeMintAlias, NativeMint, "SomeOtherTokenMintAddress111111111111111111"}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		assert.Equal(t, once, twice)
	}
}

func TestIsNative(t *testing.T) {
	assert.True(t, IsNative(nativeMintAlias))
	assert.True(t, IsNative(NativeMint))
	assert.False(t, IsNative("DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"))
}
