package pipeline

import "fmt"

// Language is a two-letter language code understood by the back-end
type Language string

const (
	Russian Language = "ru"
	English Language = "en"
	Kazakh  Language = "kk"
)

// Languages lists the supported languages in cycle order
var Languages = []Language{Russian, English, Kazakh}

// ParseLanguage validates a language code
func ParseLanguage(code string) (Language, error) {
	for _, l := range Languages {
		if string(l) == code {
			return l, nil
		}
	}
	return "", fmt.Errorf("unsupported language %q", code)
}

// LanguagePair is the spoken (Source) and reply (Dest) language
type LanguagePair struct {
	Source Language
	Dest   Language
}

// DefaultLanguagePair is Russian speech answered in English
var DefaultLanguagePair = LanguagePair{Source: Russian, Dest: English}

// NewLanguagePair validates both codes and rejects identical languages
func NewLanguagePair(source, dest string) (LanguagePair, error) {
	src, err := ParseLanguage(source)
	if err != nil {
		return LanguagePair{}, err
	}
	dst, err := ParseLanguage(dest)
	if err != nil {
		return LanguagePair{}, err
	}
	if src == dst {
		return LanguagePair{}, fmt.Errorf("source and destination language are both %q", src)
	}
	return LanguagePair{Source: src, Dest: dst}, nil
}

// Swap exchanges source and destination
func (p LanguagePair) Swap() LanguagePair {
	return LanguagePair{Source: p.Dest, Dest: p.Source}
}

// CycleDestination advances the destination to the next language in cycle
// order, skipping the source. At most one full cycle is tried.
func (p LanguagePair) CycleDestination() LanguagePair {
	idx := -1
	for i, l := range Languages {
		if l == p.Dest {
			idx = i
			break
		}
	}

	next := p.Dest
	for i := 1; i <= len(Languages); i++ {
		next = Languages[(idx+i+len(Languages))%len(Languages)]
		if next != p.Source {
			break
		}
	}
	return LanguagePair{Source: p.Source, Dest: next}
}

// String renders the pair as shown on the display, e.g. "ru->en"
func (p LanguagePair) String() string {
	return string(p.Source) + "->" + string(p.Dest)
}
