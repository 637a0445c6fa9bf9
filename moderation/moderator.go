package moderation

import (
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
	"github.com/abadojack/whatlanggo"

	"studio-live/errors"
)

// Moderator masks forbidden words in chat messages before they are stored.
// Matching runs over a normalized view of the text (lowercased, leet speak
// folded, punctuation stripped) while the replacement is applied to the
// original runes, so spacing and casing around a masked word survive.
type Moderator struct {
	matcher     *goahocorasick.Machine
	maskingChar rune
}

// NewModerator builds the Aho-Corasick automaton from the banned word list.
func NewModerator(bannedWords []string, maskingChar rune) (Moderator, error) {
	if len(bannedWords) == 0 {
		return Moderator{}, errors.ErrEmptyWords
	}
	patterns := make([][]rune, len(bannedWords))
	for i, word := range bannedWords {
		patterns[i] = normalize([]rune(word), nil)
	}
	machine := new(goahocorasick.Machine)
	if err := machine.Build(patterns); err != nil {
		return Moderator{}, err
	}
	return Moderator{matcher: machine, maskingChar: maskingChar}, nil
}

// Censor returns the text with every banned pattern masked.
func (m *Moderator) Censor(original string) string {
	origRunes := []rune(original)
	var origIdx []int
	normalized := normalize(origRunes, &origIdx)
	if len(normalized) == 0 {
		return original
	}

	spans := m.matcher.MultiPatternSearch(normalized, false)
	for _, span := range spans {
		start := span.Pos
		end := start + len(span.Word)
		if start < 0 || end > len(origIdx) {
			continue
		}
		for i := origIdx[start]; i <= origIdx[end-1]; i++ {
			origRunes[i] = m.maskingChar
		}
	}
	return string(origRunes)
}

// DetectLang returns the ISO 639-3 code of the message language, or an empty
// string when detection is not reliable enough to be worth storing.
func DetectLang(content string) string {
	info := whatlanggo.Detect(content)
	if !info.IsReliable() {
		return ""
	}
	return info.Lang.Iso6393()
}

// normalize lowercases, folds leet speak and drops noise runes. When idx is
// non-nil it records, for each kept rune, its position in the input so that
// matches can be mapped back onto the original text.
func normalize(input []rune, idx *[]int) []rune {
	out := make([]rune, 0, len(input))
	for i, r := range input {
		folded := foldLeet(r)
		if unicode.IsPunct(folded) || unicode.IsSpace(folded) || unicode.IsSymbol(folded) {
			continue
		}
		out = append(out, unicode.ToLower(folded))
		if idx != nil {
			*idx = append(*idx, i)
		}
	}
	return out
}

// foldLeet maps common leet speak characters back to their alphabet counterparts.
func foldLeet(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3', '€':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	default:
		return r
	}
}
