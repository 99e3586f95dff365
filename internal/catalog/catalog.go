// Package catalog provides the static reference datasets the seed is built
// from: the country catalog, the flag emoji lookup and the subdivision lookup.
package catalog

import (
	"errors"
	"fmt"
)

// Translation keys, as used by the world-countries dataset (ISO 639-3).
const (
	TranslationFrench  = "fra"
	TranslationGerman  = "deu"
	TranslationRussian = "rus"
	TranslationArabic  = "ara"
)

// translationKeys is the set of translations the catalog keeps per entry.
var translationKeys = []string{
	TranslationFrench,
	TranslationGerman,
	TranslationRussian,
	TranslationArabic,
}

// Source kinds accepted by Load.
const (
	SourceBuiltin = "builtin"
	SourceFiles   = "files"
)

// ErrMalformed is returned when a dataset file cannot be parsed
var ErrMalformed = errors.New("malformed dataset")

// ErrUnknownSource is returned by Load for an unsupported source kind
var ErrUnknownSource = errors.New("unknown data source")

// Entry is one country of the catalog
type Entry struct {
	ISO2       string
	ISO3       string
	CommonName string
	// Translations maps a translation key (TranslationFrench, ...) to the
	// common name in that language. Missing keys mean no translation.
	Translations map[string]string
}

// Translation returns the translated common name for key, or "" if absent
func (e Entry) Translation(key string) string {
	if e.Translations == nil {
		return ""
	}
	return e.Translations[key]
}

// FlagLookup resolves a flag emoji by ISO2 code
type FlagLookup interface {
	Flag(iso2 string) (string, bool)
}

// SubdivisionLookup resolves the subdivision names of a country by ISO2 code
type SubdivisionLookup interface {
	Subdivisions(iso2 string) []string
}

// FlagMap is a FlagLookup backed by a map
type FlagMap map[string]string

// Flag implements FlagLookup
func (m FlagMap) Flag(iso2 string) (string, bool) {
	emoji, ok := m[iso2]
	return emoji, ok
}

// SubdivisionIndex is a SubdivisionLookup backed by a map. Names keep the
// order in which they were added.
type SubdivisionIndex map[string][]string

// Subdivisions implements SubdivisionLookup
func (idx SubdivisionIndex) Subdivisions(iso2 string) []string {
	return idx[iso2]
}

// Add appends a subdivision name to a country
func (idx SubdivisionIndex) Add(iso2, name string) {
	idx[iso2] = append(idx[iso2], name)
}

// Sources bundles the three datasets consumed by the transform stage
type Sources struct {
	Kind         string
	Countries    []Entry
	Flags        FlagLookup
	Subdivisions SubdivisionLookup
}

// Options selects and locates the datasets
type Options struct {
	Source        string
	Dir           string
	CountriesFile string
	FlagsFile     string
	StatesFile    string
}

// Load returns the datasets described by opts
func Load(opts Options) (*Sources, error) {
	switch opts.Source {
	case "", SourceBuiltin:
		return Builtin()
	case SourceFiles:
		return LoadFiles(opts.filePaths())
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, opts.Source)
	}
}
