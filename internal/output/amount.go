package output

import (
	"math/big"
	"strings"
)

// EtherDecimals is the number of minor units (wei) per ether, as a power of ten.
const EtherDecimals = 18

// FormatUnits renders an amount of minor units as a decimal string with the
// given number of decimals, trimming trailing zeros but keeping one digit after
// the point. A nil amount renders as "0".
func FormatUnits(amount *big.Int, decimals int) string {
	if amount == nil {
		return "0"
	}
	if amount.Sign() < 0 {
		return "-" + FormatUnits(new(big.Int).Abs(amount), decimals)
	}

	digits := amount.String()
	if decimals <= 0 {
		return digits
	}
	if len(digits) <= decimals {
		digits = strings.Repeat("0", decimals-len(digits)+1) + digits
	}

	point := len(digits) - decimals
	frac := strings.TrimRight(digits[point:], "0")
	if frac == "" {
		frac = "0"
	}
	return digits[:point] + "." + frac
}

// FormatEther renders an amount of wei in ether.
func FormatEther(wei *big.Int) string {
	return FormatUnits(wei, EtherDecimals)
}
