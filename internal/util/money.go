package util

import "fmt"

// FormatAmount renders minor units (cents) as a decimal string, e.g. 5000 ->
// "50.00". Negative amounts keep the sign in front.
func FormatAmount(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
