package catalog

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"
)

// Default file names looked up inside Options.Dir.
const (
	DefaultCountriesFile = "countries.json"
	DefaultFlagsFile     = "flags.json"
	DefaultStatesFile    = "states.json"
)

// FilePaths locates the three dataset files
type FilePaths struct {
	Countries string
	Flags     string
	States    string
}

func (o Options) filePaths() FilePaths {
	resolve := func(explicit, name string) string {
		if explicit != "" {
			return explicit
		}
		return filepath.Join(o.Dir, name)
	}
	return FilePaths{
		Countries: resolve(o.CountriesFile, DefaultCountriesFile),
		Flags:     resolve(o.FlagsFile, DefaultFlagsFile),
		States:    resolve(o.StatesFile, DefaultStatesFile),
	}
}

// LoadFiles reads the datasets from disk. The files use the layouts published
// by the world-countries, country-flag-emoji-json and country-state-city
// packages.
func LoadFiles(paths FilePaths) (*Sources, error) {
	countriesData, err := os.ReadFile(paths.Countries)
	if err != nil {
		return nil, fmt.Errorf("failed to read countries dataset: %w", err)
	}
	countries, err := ParseCountries(countriesData)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", paths.Countries, err)
	}

	flagsData, err := os.ReadFile(paths.Flags)
	if err != nil {
		return nil, fmt.Errorf("failed to read flags dataset: %w", err)
	}
	flags, err := ParseFlags(flagsData)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", paths.Flags, err)
	}

	statesData, err := os.ReadFile(paths.States)
	if err != nil {
		return nil, fmt.Errorf("failed to read states dataset: %w", err)
	}
	states, err := ParseStates(statesData)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", paths.States, err)
	}

	return &Sources{
		Kind:         SourceFiles,
		Countries:    countries,
		Flags:        flags,
		Subdivisions: states,
	}, nil
}

// ParseCountries parses a world-countries array. Each element contributes
// cca2, cca3, name.common and translations.<key>.common.
func ParseCountries(data []byte) ([]Entry, error) {
	root, err := parseArray(data, "countries")
	if err != nil {
		return nil, err
	}

	var entries []Entry
	root.ForEach(func(_, country gjson.Result) bool {
		entry := Entry{
			ISO2:         country.Get("cca2").String(),
			ISO3:         country.Get("cca3").String(),
			CommonName:   country.Get("name.common").String(),
			Translations: make(map[string]string, len(translationKeys)),
		}
		for _, key := range translationKeys {
			if name := country.Get("translations." + key + ".common").String(); name != "" {
				entry.Translations[key] = name
			}
		}
		entries = append(entries, entry)
		return true
	})
	return entries, nil
}

// ParseFlags parses a country-flag-emoji-json dataset. Both the array export
// and the by-code object export are accepted.
func ParseFlags(data []byte) (FlagMap, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("flags: %w", ErrMalformed)
	}
	root := gjson.ParseBytes(data)
	if !root.IsArray() && !root.IsObject() {
		return nil, fmt.Errorf("flags: expected array or object: %w", ErrMalformed)
	}

	flags := make(FlagMap)
	root.ForEach(func(_, flag gjson.Result) bool {
		code := flag.Get("code").String()
		emoji := flag.Get("emoji").String()
		if code != "" && emoji != "" {
			flags[code] = emoji
		}
		return true
	})
	return flags, nil
}

// ParseStates parses a country-state-city states array, keeping name and
// countryCode of each element in file order.
func ParseStates(data []byte) (SubdivisionIndex, error) {
	root, err := parseArray(data, "states")
	if err != nil {
		return nil, err
	}

	index := make(SubdivisionIndex)
	root.ForEach(func(_, state gjson.Result) bool {
		code := state.Get("countryCode").String()
		name := state.Get("name").String()
		if code != "" && name != "" {
			index.Add(code, name)
		}
		return true
	})
	return index, nil
}

func parseArray(data []byte, what string) (gjson.Result, error) {
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, fmt.Errorf("%s: %w", what, ErrMalformed)
	}
	root := gjson.ParseBytes(data)
	if !root.IsArray() {
		return gjson.Result{}, fmt.Errorf("%s: expected array: %w", what, ErrMalformed)
	}
	return root, nil
}
