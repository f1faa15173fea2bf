package card

import "strconv"

// Matcher decides whether a digit-only string is a plausible card number
type Matcher interface {
	Match(digits string) bool
}

// prefixRange is an inclusive range of fixed-width numeric prefixes, e.g. 2221-2720
type prefixRange struct {
	low   int
	high  int
	width int
}

func prefix(p string) prefixRange {
	n, _ := strconv.Atoi(p)
	return prefixRange{low: n, high: n, width: len(p)}
}

func span(low, high string) prefixRange {
	l, _ := strconv.Atoi(low)
	h, _ := strconv.Atoi(high)
	return prefixRange{low: l, high: h, width: len(low)}
}

func (p prefixRange) matches(digits string) bool {
	if len(digits) < p.width {
		return false
	}
	n, err := strconv.Atoi(digits[:p.width])
	if err != nil {
		return false
	}
	return n >= p.low && n <= p.high
}

// rule pairs a set of prefixes with the lengths they are valid for
type rule struct {
	prefixes []prefixRange
	lengths  []int
}

func (r rule) matches(digits string) bool {
	lengthOK := false
	for _, l := range r.lengths {
		if len(digits) == l {
			lengthOK = true
			break
		}
	}
	if !lengthOK {
		return false
	}
	for _, p := range r.prefixes {
		if p.matches(digits) {
			return true
		}
	}
	return false
}

// Brand is a card network identified by its prefixes and lengths
type Brand struct {
	Name  string
	rules []rule
}

// Match reports whether digits satisfy one of the brand's rules.
// Any non-digit character makes the string invalid.
func (b Brand) Match(digits string) bool {
	if !allDigits(digits) {
		return false
	}
	for _, r := range b.rules {
		if r.matches(digits) {
			return true
		}
	}
	return false
}

// The supported card brands, each defined by its issuer prefixes and the
// number lengths it issues
var (
	// Visa numbers start with 4
	Visa = Brand{Name: "Visa", rules: []rule{
		{prefixes: []prefixRange{prefix("4")}, lengths: []int{13, 16, 19}},
	}}
	// Mastercard covers both the 51-55 and the 2221-2720 series
	Mastercard = Brand{Name: "Mastercard", rules: []rule{
		{prefixes: []prefixRange{span("51", "55"), span("2221", "2720")}, lengths: []int{16}},
	}}
	// Amex numbers are 15 digits starting with 34 or 37
	Amex = Brand{Name: "American Express", rules: []rule{
		{prefixes: []prefixRange{prefix("34"), prefix("37")}, lengths: []int{15}},
	}}
	// Discover numbers start with 6011, 644-649 or 65
	Discover = Brand{Name: "Discover", rules: []rule{
		{prefixes: []prefixRange{prefix("6011"), prefix("65"), span("644", "649")}, lengths: []int{16}},
	}}
	// DinersClub numbers are 14 digits
	DinersClub = Brand{Name: "Diners Club", rules: []rule{
		{prefixes: []prefixRange{span("300", "305"), prefix("36"), prefix("38")}, lengths: []int{14}},
	}}
	// JCB has a 15 digit legacy series and the 16 digit 35 series
	JCB = Brand{Name: "JCB", rules: []rule{
		{prefixes: []prefixRange{prefix("2131"), prefix("1800")}, lengths: []int{15}},
		{prefixes: []prefixRange{prefix("35")}, lengths: []int{16}},
	}}

	// legacyVisa is a 4 followed by 12 or 15 digits
	legacyVisa = Brand{Name: "Visa", rules: []rule{
		{prefixes: []prefixRange{prefix("4")}, lengths: []int{13, 16}},
	}}
)

// BrandSet is an ordered list of brands. It implements Matcher.
type BrandSet []Brand

// AllBrands is the default active set
var AllBrands = BrandSet{Visa, Mastercard, Amex, Discover, DinersClub, JCB}

// LegacyVisa matches only Visa numbers of 13 or 16 digits
var LegacyVisa = BrandSet{legacyVisa}

// Match reports whether any brand in the set accepts digits
func (s BrandSet) Match(digits string) bool {
	_, ok := s.Brand(digits)
	return ok
}

// Brand returns the first brand in the set that accepts digits
func (s BrandSet) Brand(digits string) (Brand, bool) {
	for _, b := range s {
		if b.Match(digits) {
			return b, true
		}
	}
	return Brand{}, false
}

// BrandSetByName resolves a configured set name: "all" or "visa"
func BrandSetByName(name string) (BrandSet, bool) {
	switch name {
	case "", "all":
		return AllBrands, true
	case "visa", "legacy":
		return LegacyVisa, true
	default:
		return nil, false
	}
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
