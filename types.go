package petpal

import "time"

// InteractionStyle is the inferred classification of how a user prefers to
// engage with the companion.
type InteractionStyle string

const (
	StyleUnknown          InteractionStyle = "unknown"
	StyleTalkative        InteractionStyle = "talkative"         // longer free-text messages
	StyleShy              InteractionStyle = "shy"               // consistently short messages
	StyleButtonPreferring InteractionStyle = "button-preferring" // picks quick-replies over typing
)

// PetPreference captures which animals the user has shown affection for.
type PetPreference string

const (
	PrefDog         PetPreference = "dog"
	PrefCat         PetPreference = "cat"
	PrefBoth        PetPreference = "both"
	PrefUnspecified PetPreference = "unspecified"
)

// Fact is one entry in a user's append-only fact log. The log keeps full
// per-key history; the newest row per key is the current value, older rows
// are retained for audit.
type Fact struct {
	ID        string
	Key       string
	Value     string
	CreatedAt time.Time
}

// UserProfile is the durable per-user memory record.
type UserProfile struct {
	UserID           string
	DisplayName      string
	PetPreference    PetPreference
	Facts            []Fact // insertion order, oldest first
	ToldStoryIDs     map[string]bool
	UsedThemes       map[string]bool
	InteractionStyle InteractionStyle
	TurnCount        int
	CreatedAt        time.Time
}

// HasToldStory reports whether a story has already been narrated to the user.
func (p *UserProfile) HasToldStory(storyID string) bool {
	return p.ToldStoryIDs[storyID]
}

// LatestFact returns the newest fact for a key, or false if the key was
// never recorded.
func (p *UserProfile) LatestFact(key string) (Fact, bool) {
	for i := len(p.Facts) - 1; i >= 0; i-- {
		if p.Facts[i].Key == key {
			return p.Facts[i], true
		}
	}
	return Fact{}, false
}

// StoryEntry is one pet narrative in the catalog. Immutable once loaded.
type StoryEntry struct {
	ID       string `yaml:"id"`
	Text     string `yaml:"text"`     // narrative fragment
	Theme    string `yaml:"theme"`    // compliment theme tag, e.g. "loyalty"
	Metaphor string `yaml:"metaphor"` // phrase linking theme to a human trait
}

// Pacing describes how much output the generator should produce for a turn.
type Pacing string

const (
	PacingBrief   Pacing = "brief"   // shy: short, single question
	PacingFull    Pacing = "full"    // talkative: full narrative allowed
	PacingChoices Pacing = "choices" // button-preferring: question as options
)

// ResponsePlan is the ephemeral per-turn structure handed to the text
// generator. It is never persisted.
type ResponsePlan struct {
	StoryID         string
	StoryText       string
	Theme           string
	ComplimentSeed  string
	QuestionSeed    string
	QuestionOptions []string // set only for PacingChoices (2-3 entries)
	Pacing          Pacing
}

// TurnMeta is the observable metadata of one inbound utterance.
type TurnMeta struct {
	Length     int
	QuickReply bool
}

// Config holds Companion initialization parameters.
type Config struct {
	DBPath             string        // Path to SQLite file (default: ./data/petpal.db)
	CatalogPath        string        // Optional YAML catalog override (default: embedded catalog)
	GroqAPIKey         string        // For the Groq text generator
	GenerateTimeout    time.Duration // Bound on a single generation call (default 20s)
	MaxFactsPerUser    int           // Fact log cap, oldest evicted first (default 200)
	RetentionInterval  time.Duration // Fact-cap sweep interval (default 1h)
	StyleWindow        int           // Turns considered by the style estimator (default 5)
	ShortUtteranceLen  int           // Below this rune count a message is short (default 20)
	PreferStoryNovelty bool          // Rank plain catalog order above theme diversity (default off)

	// Generator overrides the Groq client built from GroqAPIKey.
	// Used by tests and alternative backends.
	Generator Generator
}

// ApplyDefaults fills zero-valued fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.DBPath == "" {
		c.DBPath = "./data/petpal.db"
	}
	if c.GenerateTimeout == 0 {
		c.GenerateTimeout = 20 * time.Second
	}
	if c.MaxFactsPerUser == 0 {
		c.MaxFactsPerUser = 200
	}
	if c.RetentionInterval == 0 {
		c.RetentionInterval = time.Hour
	}
	if c.StyleWindow == 0 {
		c.StyleWindow = 5
	}
	if c.ShortUtteranceLen == 0 {
		c.ShortUtteranceLen = 20
	}
}
