package petpal

import "fmt"

// StyleEstimator infers how a user prefers to engage from observed utterance
// metadata. The heuristic is deterministic: each turn is classified on its
// own, and the style is the majority class over the last few turns, with ties
// going to the most recent turn. No averaging, no randomness.
type StyleEstimator struct {
	store    *Store
	window   int // how many recent turns vote
	shortLen int // rune count below which a message is "short"
}

// NewStyleEstimator creates an estimator over the memory store.
func NewStyleEstimator(store *Store, window, shortLen int) *StyleEstimator {
	return &StyleEstimator{store: store, window: window, shortLen: shortLen}
}

// classifyTurn maps one utterance to a style vote.
func (e *StyleEstimator) classifyTurn(meta TurnMeta) InteractionStyle {
	switch {
	case meta.QuickReply:
		return StyleButtonPreferring
	case meta.Length < e.shortLen:
		return StyleShy
	default:
		return StyleTalkative
	}
}

// Observe records the turn, re-estimates the user's interaction style over
// the recent window, and persists the result on the profile.
func (e *StyleEstimator) Observe(p *UserProfile, meta TurnMeta) (InteractionStyle, error) {
	if err := e.store.RecordTurn(p.UserID, meta); err != nil {
		return p.InteractionStyle, err
	}
	p.TurnCount++

	recent, err := e.store.RecentTurns(p.UserID, e.window)
	if err != nil {
		return p.InteractionStyle, fmt.Errorf("petpal: estimate style: %w", err)
	}

	style := e.estimate(recent)
	if err := e.store.UpdateStyle(p.UserID, style); err != nil {
		return p.InteractionStyle, err
	}
	p.InteractionStyle = style
	return style, nil
}

// estimate tallies votes over turns ordered newest first. On a tied count the
// newest turn's class wins, which keeps the estimate recency-weighted and
// explainable.
func (e *StyleEstimator) estimate(recent []TurnMeta) InteractionStyle {
	if len(recent) == 0 {
		return StyleUnknown
	}

	votes := make(map[InteractionStyle]int, 3)
	for _, m := range recent {
		votes[e.classifyTurn(m)]++
	}

	best := e.classifyTurn(recent[0]) // newest turn breaks ties
	for _, style := range []InteractionStyle{StyleTalkative, StyleShy, StyleButtonPreferring} {
		if votes[style] > votes[best] {
			best = style
		}
	}
	return best
}
