package catalog

import (
	_ "embed"
	"fmt"

	"github.com/biter777/countries"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

//go:embed data/states.json
var embeddedStates []byte

// builtinLanguages maps translation keys to the CLDR language used for them.
var builtinLanguages = map[string]language.Tag{
	TranslationFrench:  language.French,
	TranslationGerman:  language.German,
	TranslationRussian: language.Russian,
	TranslationArabic:  language.Arabic,
}

// Builtin returns the datasets compiled into the binary. Codes and flags come
// from the ISO 3166 tables of biter777/countries, common names and
// translations from CLDR region names. Subdivisions come from the embedded
// states dataset, with ISO 3166-2 names for countries it does not list.
func Builtin() (*Sources, error) {
	states, err := builtinSubdivisions()
	if err != nil {
		return nil, err
	}

	english := display.Regions(language.English)
	namers := make(map[string]display.Namer, len(builtinLanguages))
	for key, tag := range builtinLanguages {
		namers[key] = display.Regions(tag)
	}

	all := countries.All()
	entries := make([]Entry, 0, len(all))
	flags := make(FlagMap, len(all))
	for _, country := range all {
		iso2 := country.Alpha2()
		if iso2 == "" {
			continue
		}
		entry := Entry{
			ISO2:         iso2,
			ISO3:         country.Alpha3(),
			CommonName:   country.String(),
			Translations: make(map[string]string, len(namers)),
		}
		if region, err := language.ParseRegion(iso2); err == nil {
			if name := english.Name(region); name != "" {
				entry.CommonName = name
			}
			for key, namer := range namers {
				if name := namer.Name(region); name != "" {
					entry.Translations[key] = name
				}
			}
		}
		if emoji := country.Emoji(); emoji != "" {
			flags[iso2] = emoji
		}
		entries = append(entries, entry)
	}

	return &Sources{
		Kind:         SourceBuiltin,
		Countries:    entries,
		Flags:        flags,
		Subdivisions: states,
	}, nil
}

// builtinSubdivisions merges the embedded states dataset with the ISO 3166-2
// subdivisions of biter777/countries. A country listed in the embedded
// dataset keeps exactly those names.
func builtinSubdivisions() (SubdivisionIndex, error) {
	states, err := ParseStates(embeddedStates)
	if err != nil {
		return nil, fmt.Errorf("embedded states dataset: %w", err)
	}

	for code, subdivisions := range countries.AllSubdivisionsByCountryCode() {
		iso2 := code.Alpha2()
		if len(iso2) != 2 || len(states[iso2]) > 0 {
			continue
		}
		for _, subdivision := range subdivisions {
			if subdivision.IsValid() {
				states.Add(iso2, subdivision.String())
			}
		}
	}

	return states, nil
}
