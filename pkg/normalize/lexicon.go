package normalize

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Lexicon holds the keyword sets behind polarity and seriousness calls.
// The two polarity sets must stay disjoint; classification counts matches
// per set, so a keyword in both would cancel itself out.
type Lexicon struct {
	AdverseKeywords    []string `yaml:"adverse_keywords" json:"adverse_keywords"`
	NonAdverseKeywords []string `yaml:"non_adverse_keywords" json:"non_adverse_keywords"`
	SeriousKeywords    []string `yaml:"serious_keywords" json:"serious_keywords"`
	DosageFormSuffixes []string `yaml:"dosage_form_suffixes" json:"dosage_form_suffixes"`
}

func LoadLexicon(path string) (Lexicon, error) {
	if path == "" {
		return DefaultLexicon(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Lexicon{}, err
	}
	var lex Lexicon
	if err := yaml.Unmarshal(content, &lex); err != nil {
		return Lexicon{}, err
	}
	if len(lex.AdverseKeywords) == 0 || len(lex.NonAdverseKeywords) == 0 {
		return Lexicon{}, fmt.Errorf("lexicon %s missing keyword sets", path)
	}
	if len(lex.SeriousKeywords) == 0 {
		lex.SeriousKeywords = DefaultLexicon().SeriousKeywords
	}
	if len(lex.DosageFormSuffixes) == 0 {
		lex.DosageFormSuffixes = DefaultLexicon().DosageFormSuffixes
	}
	lex.normalize()
	return lex, nil
}

func (l *Lexicon) normalize() {
	l.AdverseKeywords = lowerAll(l.AdverseKeywords)
	l.NonAdverseKeywords = lowerAll(l.NonAdverseKeywords)
	l.SeriousKeywords = lowerAll(l.SeriousKeywords)
	l.DosageFormSuffixes = lowerAll(l.DosageFormSuffixes)
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if trimmed := strings.TrimSpace(strings.ToLower(s)); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func DefaultLexicon() Lexicon {
	return Lexicon{
		AdverseKeywords: []string{
			"adverse", "reaction", "side effect", "allergy", "allergic",
			"nausea", "vomiting", "headache", "dizziness", "rash",
			"pain", "swelling", "fever", "fatigue", "weakness",
			"bleeding", "bruising", "infection", "inflammation",
			"hospitalized", "hospitalization", "emergency", "serious",
			"severe", "death", "died", "fatal", "life-threatening",
			"disability", "discontinued", "stopped due to",
		},
		NonAdverseKeywords: []string{
			"well tolerated", "no side effects", "no adverse", "no reaction",
			"effective", "working well", "improved", "better", "recovered",
			"no complaints", "no issues", "no problems", "satisfactory",
			"as expected", "normal", "good response", "positive outcome",
		},
		SeriousKeywords: []string{
			"death", "died", "fatal", "life-threatening", "hospitalized",
			"hospitalization", "disability",
		},
		DosageFormSuffixes: []string{
			" tablet", " capsule", " injection", " syrup", " cream", " ointment",
		},
	}
}
