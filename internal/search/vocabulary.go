package search

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Vocabulary lists the terms that broaden a search to the company, position or location of
// contacts.
type Vocabulary struct {
	Companies []string `yaml:"companies"`
	Roles     []string `yaml:"roles"`
	Cities    []string `yaml:"cities"`
}

// DefaultVocabulary returns the built-in vocabulary.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Companies: []string{
			"google", "apple", "microsoft", "meta", "facebook", "amazon", "netflix", "uber", "airbnb",
			"twitter", "linkedin", "salesforce", "oracle", "adobe", "nvidia", "intel", "tesla", "spacex",
		},
		Roles: []string{
			"engineer", "developer", "manager", "director", "designer", "analyst", "scientist",
			"founder", "ceo", "cto", "consultant", "recruiter", "sales", "marketing", "product",
		},
		Cities: []string{
			"austin", "seattle", "boston", "chicago", "denver", "san francisco", "new york",
			"los angeles", "round rock",
		},
	}
}

// IsEmpty reports whether the vocabulary has no terms at all.
func (v Vocabulary) IsEmpty() bool {
	return len(v.Companies) == 0 && len(v.Roles) == 0 && len(v.Cities) == 0
}

// normalized returns a copy with lowercased entries whose words are separated by single blanks.
func (v Vocabulary) normalized() Vocabulary {
	return Vocabulary{
		Companies: normalizeTerms(v.Companies),
		Roles:     normalizeTerms(v.Roles),
		Cities:    normalizeTerms(v.Cities),
	}
}

func normalizeTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.Join(strings.Fields(strings.ToLower(t)), " "); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// LoadVocabulary reads a vocabulary from a YAML file.
func LoadVocabulary(path string) (Vocabulary, error) {
	var v Vocabulary
	data, err := os.ReadFile(path)
	if err != nil {
		return v, fmt.Errorf("read vocabulary: %w", err)
	}
	if err := yaml.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("parse vocabulary %s: %w", path, err)
	}
	return v, nil
}
