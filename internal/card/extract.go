package card

import "strings"

// Number is a validated string of card digits
type Number string

// String returns the digits
func (n Number) String() string {
	return string(n)
}

// LastFour returns the trailing four digits, used when logging
func (n Number) LastFour() string {
	if len(n) <= 4 {
		return string(n)
	}
	return string(n[len(n)-4:])
}

// Result is the outcome of an extraction: either a found Number or nothing.
// The zero value is NotFound.
type Result struct {
	number Number
	found  bool
}

// Found wraps a matched card number
func Found(n Number) Result {
	return Result{number: n, found: true}
}

// NotFound is the result of a scan that matched nothing
func NotFound() Result {
	return Result{}
}

// Found reports whether a card number was matched
func (r Result) Found() bool {
	return r.found
}

// Number returns the matched card number and whether there was one
func (r Result) Number() (Number, bool) {
	return r.number, r.found
}

// Digits strips every non-digit character from s
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Extract returns the first line whose digits form a card number in AllBrands
func Extract(lines []string) Result {
	return ExtractWith(lines, AllBrands)
}

// ExtractWith scans lines in order and returns the first line whose digit-only
// projection satisfies m. Later lines are never considered once one matches.
func ExtractWith(lines []string, m Matcher) Result {
	for _, line := range lines {
		digits := Digits(line)
		if digits == "" {
			continue
		}
		if m.Match(digits) {
			return Found(Number(digits))
		}
	}
	return NotFound()
}
