package oracle

import "strings"

// PlaceholderFeedID marks a registered symbol that has no live feed yet.
const PlaceholderFeedID = "0x0000000000000000000000000000000000000000000000000000000000000000"

// DefaultFeeds returns the symbol -> price feed id registry.
func DefaultFeeds() map[string]string {
	return map[string]string{
		"HNT":    "0x4ca4beeca86f0d164160323817a4e42b10010a724c2217c6ee41b54cd4cc61fc",
		"MOBILE": PlaceholderFeedID,
		"IOT":    PlaceholderFeedID,
		"FIL":    "0x150ac9b959aee0051e4091f0ef5216d941f590e1c5e7f91cf7635b5c11628c0e",
		"ETH":    "0xff61491a931112ddf1bd8147cd1b641375f79f5825126d665480874634fd0ace",
		"BTC":    "0xe62df6c8b4a85fe1a67db44dc12de5db330f7ac66b72dc658afedf0f4a415b43",
	}
}

// DefaultFallbackPrices returns the static USD prices used when a symbol has
// no usable live feed.
func DefaultFallbackPrices() map[string]float64 {
	return map[string]float64{
		"HNT":    4.85,
		"MOBILE": 0.0012,
		"IOT":    0.0008,
	}
}

// unknownSymbolPrice is served for symbols absent from every table.
const unknownSymbolPrice = 1.0

func normalizeFeedID(id string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimPrefix(id, "0x"), "0X"))
}

func isPlaceholder(id string) bool {
	return strings.Trim(normalizeFeedID(id), "0") == ""
}
