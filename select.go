package petpal

import "log"

// Selector picks the next untold story for a user. Selection is fully
// deterministic: given the same profile and catalog it always returns the
// same entry, which keeps turn behavior reproducible.
type Selector struct {
	catalog       *Catalog
	store         *Store
	preferNovelty bool
}

// NewSelector creates a selection policy over a catalog and memory store.
// By default unused compliment themes outrank plain catalog order; with
// preferNovelty the first untold story wins regardless of theme.
func NewSelector(catalog *Catalog, store *Store, preferNovelty bool) *Selector {
	return &Selector{catalog: catalog, store: store, preferNovelty: preferNovelty}
}

// Select returns a story not yet told to the user. When every story has been
// told, it resets the user's told/theme history once and selects again, so a
// non-empty catalog always yields a story.
func (sel *Selector) Select(p *UserProfile) (StoryEntry, error) {
	if sel.catalog.Len() == 0 {
		return StoryEntry{}, ErrEmptyCatalog
	}

	if st, ok := sel.pick(p); ok {
		return st, nil
	}

	// Catalog exhausted for this user: clear history and go one more round.
	if err := sel.store.Reset(p.UserID); err != nil {
		return StoryEntry{}, err
	}
	p.ToldStoryIDs = make(map[string]bool)
	p.UsedThemes = make(map[string]bool)
	log.Printf("[petpal] Story history reset for %s (catalog exhausted)", p.UserID)

	st, _ := sel.pick(p) // catalog is non-empty, so this round cannot miss
	return st, nil
}

// pick applies the selection order over untold stories: first an untold story
// with an unused theme, then the first untold story in catalog order.
func (sel *Selector) pick(p *UserProfile) (StoryEntry, bool) {
	var fallback StoryEntry
	found := false

	for _, st := range sel.catalog.Stories() {
		if p.HasToldStory(st.ID) {
			continue
		}
		if !found {
			fallback = st
			found = true
			if sel.preferNovelty {
				break
			}
		}
		if !sel.preferNovelty && !p.UsedThemes[st.Theme] {
			return st, true
		}
	}
	return fallback, found
}
