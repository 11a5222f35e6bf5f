package types

// ufCodes maps the two-letter jurisdiction abbreviation to its
// two-digit numeric code used in access keys and documents.
var ufCodes = map[string]string{
	"RO": "11", "AC": "12", "AM": "13", "RR": "14", "PA": "15",
	"AP": "16", "TO": "17", "MA": "21", "PI": "22", "CE": "23",
	"RN": "24", "PB": "25", "PE": "26", "AL": "27", "SE": "28",
	"BA": "29", "MG": "31", "ES": "32", "RJ": "33", "SP": "35",
	"PR": "41", "SC": "42", "RS": "43", "MS": "50", "MT": "51",
	"GO": "52", "DF": "53",
}

// JurisdictionCode returns the numeric code for a two-letter
// jurisdiction abbreviation. Unknown jurisdictions fall back to "35",
// matching the documented default.
func JurisdictionCode(uf string) string {
	if code, ok := ufCodes[uf]; ok {
		return code
	}
	return "35"
}

// IsKnownJurisdiction reports whether the abbreviation has a code
func IsKnownJurisdiction(uf string) bool {
	_, ok := ufCodes[uf]
	return ok
}
