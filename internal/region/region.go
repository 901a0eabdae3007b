package region

import "strings"

// Supported region codes. Unknown codes are rejected by the registry.
const (
	Bangladesh   = "BD"
	India        = "IND"
	Pakistan     = "PK"
	Indonesia    = "ID"
	Vietnam      = "VN"
	Thailand     = "TH"
	MiddleEast   = "ME"
	Europe       = "EU"
	NorthAmerica = "NA"
	Brazil       = "BR"
	Taiwan       = "TW"
	CIS          = "CIS"
	SouthAmerica = "SAC"
)

// Codes lists every supported region in display order.
var Codes = []string{
	Bangladesh, India, Pakistan, Indonesia, Vietnam, Thailand, MiddleEast,
	Europe, NorthAmerica, Brazil, Taiwan, CIS, SouthAmerica,
}

var known = func() map[string]bool {
	m := make(map[string]bool, len(Codes))
	for _, c := range Codes {
		m[c] = true
	}
	return m
}()

// Normalize trims and upper-cases a code without validating it.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Valid reports whether code is a supported region. The code must already be normalized.
func Valid(code string) bool {
	return known[code]
}

// All returns a copy of Codes.
func All() []string {
	out := make([]string, len(Codes))
	copy(out, Codes)
	return out
}
