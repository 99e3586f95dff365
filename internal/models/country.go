package models

// Country is the document written to the countries collection
type Country struct {
	ISO2          string  `json:"iso2" bson:"iso2"`
	ISO3          string  `json:"iso3" bson:"iso3"`
	Names         Names   `json:"names" bson:"names"`
	MiddleEastern bool    `json:"middleEastern" bson:"middleEastern"`
	Flag          string  `json:"flag" bson:"flag"`
	States        []State `json:"states" bson:"states"`
}

// Names holds the display name of a country per language key. The "gr" key
// carries the German translation and the "rs" key the Russian one; consumers
// of the stored documents rely on these exact keys.
type Names struct {
	EN string `json:"en" bson:"en"`
	FR string `json:"fr" bson:"fr"`
	GR string `json:"gr" bson:"gr"`
	RS string `json:"rs" bson:"rs"`
	AR string `json:"ar" bson:"ar"`
}

// State is a subdivision (state, province, region) of a country
type State struct {
	Name string `json:"name" bson:"name"`
}

// middleEasternCodes lists the ISO2 codes classified as Middle Eastern.
var middleEasternCodes = []string{
	"AE", // United Arab Emirates
	"SA", // Saudi Arabia
	"EG", // Egypt
	"IQ", // Iraq
	"IR", // Iran
	"JO", // Jordan
	"KW", // Kuwait
	"LB", // Lebanon
	"OM", // Oman
	"QA", // Qatar
	"SY", // Syria
	"YE", // Yemen
	"BH", // Bahrain
	"PS", // Palestine
	"LY", // Libya
	"SD", // Sudan
	"TN", // Tunisia
	"DZ", // Algeria
	"MA", // Morocco
}

var middleEasternSet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(middleEasternCodes))
	for _, code := range middleEasternCodes {
		set[code] = struct{}{}
	}
	return set
}()

// IsMiddleEastern reports whether iso2 belongs to the Middle Eastern set.
// The comparison is exact: codes are expected in upper case.
func IsMiddleEastern(iso2 string) bool {
	_, ok := middleEasternSet[iso2]
	return ok
}

// MiddleEasternCodes returns a copy of the Middle Eastern set in its declared order
func MiddleEasternCodes() []string {
	out := make([]string, len(middleEasternCodes))
	copy(out, middleEasternCodes)
	return out
}
