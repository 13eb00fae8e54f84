package utils

import "fmt"

// KoboToNaira splits an amount in kobo into whole Naira and remaining kobo.
// Negative amounts keep the sign on the Naira part.
func KoboToNaira(kobo int64) (naira int64, cents int64) {
	naira = kobo / 100
	cents = kobo % 100
	if cents < 0 {
		cents = -cents
	}
	return naira, cents
}

// FormatKobo renders a kobo amount as a Naira string, e.g. "₦1,234.56"
// without the thousands separators: "₦1234.56".
func FormatKobo(kobo int64) string {
	naira, cents := KoboToNaira(kobo)
	if kobo < 0 && naira == 0 {
		return fmt.Sprintf("-₦0.%02d", cents)
	}
	return fmt.Sprintf("₦%d.%02d", naira, cents)
}
