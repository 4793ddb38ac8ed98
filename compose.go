package petpal

import (
	"fmt"
	"strings"
)

// Composer assembles the per-turn ResponsePlan: story fragment, personalized
// compliment seed, one easy question, and a pacing hint. The plan is rendered
// into prose by the external generator — the composer never writes the final
// reply itself.
type Composer struct {
	store *Store
}

// NewComposer creates a composer over the memory store.
func NewComposer(store *Store) *Composer {
	return &Composer{store: store}
}

// quickReplyOptions is the fixed set of quick-replies the companion offers.
// Utterances matching one of these classify the user as button-preferring.
var quickReplyOptions = []string{
	"Dogs 🐶",
	"Cats 🐱",
	"Both!",
	"Tell me more",
	"Aww, that's sweet",
	"Yes",
	"No",
}

// IsQuickReply reports whether an utterance is one of the predefined
// quick-reply options.
func IsQuickReply(utterance string) bool {
	trimmed := strings.TrimSpace(utterance)
	for _, opt := range quickReplyOptions {
		if strings.EqualFold(trimmed, opt) {
			return true
		}
	}
	return false
}

// genericCompliments are warm fallback seeds used when nothing personal is
// known about the user yet.
var genericCompliments = []string{
	"they have the gentle energy that pets sense a kind heart in from miles away",
	"like the most loyal companion animals, they bring warmth wherever they go",
	"they seem like someone the most selective rescue pets would choose first",
	"they have the comforting presence of the best therapy animals",
}

// questionSeeds are easy, low-effort conversation continuations.
var questionSeeds = []string{
	"ask how their day went",
	"ask about the cutest animal they've seen lately",
	"ask whether they have a pet, or one they've always dreamed of",
	"ask what's making them smile right now",
	"ask what pet superpower they'd pick",
}

// choiceQuestions pair a button-friendly question with 2-3 short options.
var choiceQuestions = []struct {
	seed    string
	options []string
}{
	{"ask if they're a dog person or a cat person", []string{"Dogs 🐶", "Cats 🐱", "Both!"}},
	{"ask if they want to hear another story", []string{"Yes", "Tell me more", "No"}},
}

// Compose builds the structured reply plan for one turn. Pacing follows the
// user's interaction style: shy users get a brief plan with exactly one
// question, button-preferring users get the question as short options, and
// talkative users get the full narrative.
func (c *Composer) Compose(p *UserProfile, story StoryEntry) ResponsePlan {
	plan := ResponsePlan{
		StoryID:        story.ID,
		StoryText:      story.Text,
		Theme:          story.Theme,
		ComplimentSeed: c.complimentSeed(p, story),
	}

	switch p.InteractionStyle {
	case StyleShy:
		plan.Pacing = PacingBrief
	case StyleButtonPreferring:
		plan.Pacing = PacingChoices
	default:
		plan.Pacing = PacingFull
	}

	if plan.Pacing == PacingChoices {
		q := choiceQuestions[p.TurnCount%len(choiceQuestions)]
		plan.QuestionSeed = q.seed
		plan.QuestionOptions = q.options
	} else {
		plan.QuestionSeed = questionSeeds[p.TurnCount%len(questionSeeds)]
	}

	return plan
}

// complimentSeed derives the compliment from the story's theme and metaphor,
// anchored on a stored fact or the display name when available. Without
// either it falls back to a generic-but-warm phrasing.
func (c *Composer) complimentSeed(p *UserProfile, story StoryEntry) string {
	var b strings.Builder

	switch {
	case p.DisplayName != "":
		fmt.Fprintf(&b, "compliment %s by name: %s — like %s", p.DisplayName, story.Theme, story.Metaphor)
	case len(p.Facts) > 0:
		f := p.Facts[len(p.Facts)-1]
		fmt.Fprintf(&b, "compliment them referencing that %s is %q: %s — like %s", f.Key, f.Value, story.Theme, story.Metaphor)
	default:
		generic := genericCompliments[p.TurnCount%len(genericCompliments)]
		fmt.Fprintf(&b, "compliment them warmly: %s", generic)
	}

	if p.PetPreference == PrefDog || p.PetPreference == PrefCat {
		fmt.Fprintf(&b, " (they love %ss)", p.PetPreference)
	}
	return b.String()
}

// BuildPrompt renders the persona rules, the user's memory snapshot, and the
// plan into the prompt handed to the text generator.
func BuildPrompt(persona string, p *UserProfile, plan ResponsePlan, utterance string) string {
	var b strings.Builder

	b.WriteString(persona)
	b.WriteString("\n\n## What you remember about this person:\n")
	if p.DisplayName != "" {
		fmt.Fprintf(&b, "- Name: %s\n", p.DisplayName)
	}
	if p.PetPreference != PrefUnspecified && p.PetPreference != "" {
		fmt.Fprintf(&b, "- Pet preference: %s\n", p.PetPreference)
	}
	for _, f := range recentFacts(p.Facts, 5) {
		if f.Key == FactKeyName || f.Key == FactKeyPetPreference {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", f.Key, f.Value)
	}
	fmt.Fprintf(&b, "- Interaction style: %s\n", p.InteractionStyle)
	fmt.Fprintf(&b, "- Messages exchanged: %d\n", p.TurnCount)

	b.WriteString("\n## This turn:\n")
	fmt.Fprintf(&b, "- Share this pet story naturally: %s\n", plan.StoryText)
	fmt.Fprintf(&b, "- Then %s\n", plan.ComplimentSeed)
	fmt.Fprintf(&b, "- End with one easy question: %s\n", plan.QuestionSeed)
	if len(plan.QuestionOptions) > 0 {
		fmt.Fprintf(&b, "- Phrase the question as a choice between: %s\n", strings.Join(plan.QuestionOptions, " / "))
	}

	switch plan.Pacing {
	case PacingBrief:
		b.WriteString("- Keep it short: a couple of sentences, a single paragraph, exactly one question.\n")
	case PacingChoices:
		b.WriteString("- Keep it compact and end with the options so they can answer with a tap.\n")
	case PacingFull:
		b.WriteString("- A fuller, multi-sentence story is welcome, but stay conversational.\n")
	}

	b.WriteString("\n## Their message:\n")
	b.WriteString(utterance)
	b.WriteString("\n")

	return b.String()
}

func recentFacts(facts []Fact, n int) []Fact {
	if len(facts) <= n {
		return facts
	}
	return facts[len(facts)-n:]
}
