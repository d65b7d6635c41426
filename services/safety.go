package services

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"safar/itinerary"
)

// LoadSafetyRules merges destinations listed under high_risk_destinations
// in the YAML file at path with extra. An empty path reads no file.
//
//	high_risk_destinations:
//	  - Chadar Trek
//	  - Kinner Kailash
func LoadSafetyRules(path string, extra []string) (itinerary.HighRiskSet, error) {
	destinations := append([]string(nil), extra...)

	if path != "" {
		k := koanf.New(".")
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load safety rules %s: %w", path, err)
		}
		destinations = append(destinations, k.Strings("high_risk_destinations")...)
	}

	return itinerary.NewHighRiskSet(destinations...), nil
}
