// Package transform joins the static datasets into country documents.
package transform

import (
	"github.com/global-data-controller/countryseed/internal/catalog"
	"github.com/global-data-controller/countryseed/internal/models"
)

// Countries builds one document per catalog entry, in catalog order.
// Lookup misses never fail: a missing flag yields "", missing subdivisions
// an empty list and a missing translation the English name.
func Countries(sources *catalog.Sources) []models.Country {
	if sources == nil {
		return []models.Country{}
	}
	records := make([]models.Country, 0, len(sources.Countries))
	for _, entry := range sources.Countries {
		records = append(records, Country(entry, sources.Flags, sources.Subdivisions))
	}
	return records
}

// Country builds the document for a single catalog entry
func Country(entry catalog.Entry, flags catalog.FlagLookup, subdivisions catalog.SubdivisionLookup) models.Country {
	return models.Country{
		ISO2:          entry.ISO2,
		ISO3:          entry.ISO3,
		Names:         names(entry),
		MiddleEastern: models.IsMiddleEastern(entry.ISO2),
		Flag:          flag(flags, entry.ISO2),
		States:        states(subdivisions, entry.ISO2),
	}
}

// names keeps the gr <- German and rs <- Russian pairing of the stored schema.
func names(entry catalog.Entry) models.Names {
	en := entry.CommonName
	orEnglish := func(key string) string {
		if name := entry.Translation(key); name != "" {
			return name
		}
		return en
	}
	return models.Names{
		EN: en,
		FR: orEnglish(catalog.TranslationFrench),
		GR: orEnglish(catalog.TranslationGerman),
		RS: orEnglish(catalog.TranslationRussian),
		AR: orEnglish(catalog.TranslationArabic),
	}
}

func flag(flags catalog.FlagLookup, iso2 string) string {
	if flags == nil {
		return ""
	}
	emoji, ok := flags.Flag(iso2)
	if !ok {
		return ""
	}
	return emoji
}

func states(subdivisions catalog.SubdivisionLookup, iso2 string) []models.State {
	out := []models.State{}
	if subdivisions == nil {
		return out
	}
	for _, name := range subdivisions.Subdivisions(iso2) {
		out = append(out, models.State{Name: name})
	}
	return out
}

// Summary holds the aggregate counts printed after a load
type Summary struct {
	Total         int `json:"total"`
	MiddleEastern int `json:"middle_eastern"`
	Other         int `json:"other"`
	States        int `json:"states"`
}

// Summarize computes the aggregate counts of records
func Summarize(records []models.Country) Summary {
	s := Summary{Total: len(records)}
	for _, record := range records {
		if record.MiddleEastern {
			s.MiddleEastern++
		}
		s.States += len(record.States)
	}
	s.Other = s.Total - s.MiddleEastern
	return s
}
