package petpal

import (
	_ "embed"
	"strings"
)

// The persona rules are static, process-wide configuration: tone, structure,
// and boundaries for every reply. They are baked into the binary and consumed
// read-only by the prompt builder.

//go:embed persona.md
var personaRules string

// PersonaRules returns the fixed persona prompt fragment.
func PersonaRules() string {
	return strings.TrimSpace(personaRules)
}

// fallbackReplies are served when generation fails or times out. The turn is
// not committed to memory, but the persona's always-warm contract still
// holds. Cycled by the user's turn count so repeats stay rare.
var fallbackReplies = []string{
	"I'm so happy you're chatting with me! Tell me something about yourself — I love getting to know you! 🐾",
	"You seem wonderful! What's your favorite thing about pets? I have so many cute stories to share! ✨",
	"Want to hear about the sweetest rescue dog I know of? I think you'd love it 💕",
	"What kind of furry friends do you love most? 😊",
	"I bet pets absolutely adore you! How has your day been? 🌟",
}

// FallbackReply returns a deterministic warm reply for a failed turn,
// addressed by name when one is known.
func FallbackReply(p *UserProfile) string {
	reply := fallbackReplies[p.TurnCount%len(fallbackReplies)]
	if p.DisplayName != "" {
		return p.DisplayName + ", " + reply
	}
	return reply
}
