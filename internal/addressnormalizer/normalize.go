// Package addressnormalizer canonicalizes the one legacy alias of the
// native SOL mint address that still shows up in older monitor records
// and user-supplied addresses.
package addressnormalizer

const (
	// nativeMintAlias is the legacy address some callers still pass; it
	// differs from the canonical mint only in its final digit.
	nativeMintAlias = "So11111111111111111111111111111111111111111"

	// NativeMint is the canonical wrapped-SOL mint address. All outbound
	// calls to MarketData and Trader must use this form.
	NativeMint = "So11111111111111111111111111111111111111112"
)

// Normalize maps the legacy native-mint alias to the canonical mint and
// passes every other address through unchanged. It is idempotent:
// Normalize(Normalize(x)) == Normalize(x).
func Normalize(address string) string {
	if address == nativeMintAlias {
		return NativeMint
	}
	return address
}

// IsNative reports whether address (in either alias or canonical form)
// refers to the native SOL mint.
func IsNative(address string) bool {
	return Normalize(address) == NativeMint
}
