package card

import "strings"

// Separator is placed between groups of four digits
const Separator = " • "

// FormatForDisplay groups a card number in fours: 4111 • 1111 • 1111 • 1111
func FormatForDisplay(number string) string {
	return FormatWith(number, Separator)
}

// FormatWith inserts sep before every digit whose index is a non-zero multiple of 4
func FormatWith(number string, sep string) string {
	var b strings.Builder
	b.Grow(len(number) + len(sep)*(len(number)/4))
	for i, r := range []rune(number) {
		if i%4 == 0 && i != 0 {
			b.WriteString(sep)
		}
		b.WriteRune(r)
	}
	return b.String()
}
