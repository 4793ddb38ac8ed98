package petpal

import (
	"strings"
	"unicode"
)

// FactExtractor pulls shared personal details out of utterances with plain
// keyword patterns. Kept deliberately simple: anything subtler belongs to the
// external language model, not the memory core.
type FactExtractor struct {
	store *Store
}

// NewFactExtractor creates an extractor over the memory store.
func NewFactExtractor(store *Store) *FactExtractor {
	return &FactExtractor{store: store}
}

// Fact keys written by the extractor.
const (
	FactKeyName          = "display_name"
	FactKeyPetPreference = "pet_preference"
)

var namePatterns = []struct {
	phrase string
	weak   bool // weak patterns fire only while no name is known yet
}{
	{phrase: "my name is"},
	{phrase: "my name's"},
	{phrase: "call me"},
	{phrase: "they call me"},
	{phrase: "i'm", weak: true},
	{phrase: "i am", weak: true},
}

var dogSignals = []string{"dog", "puppy", "pup", "golden retriever", "labrador", "poodle", "collie"}
var catSignals = []string{"cat", "kitten", "kitty", "feline", "tabby", "persian"}

// Observe extracts facts from the utterance, records them in the append-only
// log, and updates the profile's current fields. It never overwrites an
// explicitly set display name with a weaker guess — only the "i'm"/"i am"
// patterns are treated as weak.
func (x *FactExtractor) Observe(p *UserProfile, utterance string) error {
	if name, ok := extractName(utterance, p.DisplayName == ""); ok && name != p.DisplayName {
		if err := x.store.RecordFact(p.UserID, FactKeyName, name); err != nil {
			return err
		}
		if err := x.store.UpdateProfileField(p.UserID, "display_name", name); err != nil {
			return err
		}
		p.DisplayName = name
	}

	if pref, ok := extractPetPreference(utterance); ok && pref != p.PetPreference {
		// Once the user has shown love for both, a single-species mention
		// does not narrow the preference back down.
		if p.PetPreference == PrefBoth && pref != PrefBoth {
			return nil
		}
		if err := x.store.RecordFact(p.UserID, FactKeyPetPreference, string(pref)); err != nil {
			return err
		}
		if err := x.store.UpdateProfileField(p.UserID, "pet_preference", string(pref)); err != nil {
			return err
		}
		p.PetPreference = pref
	}
	return nil
}

// extractName scans for introduction phrases and returns the word that
// follows, title-cased. Single letters and non-alphabetic tokens are ignored.
func extractName(utterance string, allowWeak bool) (string, bool) {
	lower := strings.ToLower(utterance)
	words := strings.Fields(utterance)
	lowerWords := strings.Fields(lower)

	for _, pat := range namePatterns {
		if pat.weak && !allowWeak {
			continue
		}
		if !strings.Contains(lower, pat.phrase) {
			continue
		}
		patWords := strings.Fields(pat.phrase)
		for i := 0; i+len(patWords) <= len(lowerWords); i++ {
			if !wordsMatch(lowerWords[i:i+len(patWords)], patWords) {
				continue
			}
			nameIdx := i + len(patWords)
			if nameIdx >= len(words) {
				break
			}
			name := strings.TrimFunc(words[nameIdx], func(r rune) bool {
				return !unicode.IsLetter(r) && r != '\''
			})
			if len(name) > 1 && isAlphabetic(name) {
				return titleCase(name), true
			}
			break
		}
	}
	return "", false
}

func wordsMatch(have, want []string) bool {
	for i := range want {
		if strings.Trim(have[i], ".,!?") != want[i] {
			return false
		}
	}
	return true
}

func titleCase(s string) string {
	s = strings.ToLower(s)
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func isAlphabetic(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) && r != '\'' {
			return false
		}
	}
	return true
}

// extractPetPreference looks for species words. A message mentioning both
// dogs and cats maps to PrefBoth.
func extractPetPreference(utterance string) (PetPreference, bool) {
	lower := strings.ToLower(utterance)

	hasDog := containsAny(lower, dogSignals)
	hasCat := containsAny(lower, catSignals)

	switch {
	case hasDog && hasCat:
		return PrefBoth, true
	case hasDog:
		return PrefDog, true
	case hasCat:
		return PrefCat, true
	default:
		return PrefUnspecified, false
	}
}

func containsAny(s string, signals []string) bool {
	for _, sig := range signals {
		if strings.Contains(s, sig) {
			return true
		}
	}
	return false
}
