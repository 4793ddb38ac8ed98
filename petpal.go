package petpal

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"unicode/utf8"
)

// Companion is the conversation memory and response-composition engine.
// Each Chat call is one stateless turn over durable per-user memory.
type Companion struct {
	store           *Store
	catalog         *Catalog
	selector        *Selector
	styles          *StyleEstimator
	extractor       *FactExtractor
	composer        *Composer
	generator       Generator
	config          Config
	userLocks       sync.Map // user id -> *sync.Mutex
	cancelRetention context.CancelFunc
}

// ChatRequest is one inbound user utterance.
type ChatRequest struct {
	UserID    string
	Utterance string
}

// ChatResponse is the finished turn: final prose plus the memory snapshot
// pieces a caller typically wants to echo back.
type ChatResponse struct {
	Reply     string
	StoryID   string // empty on a fallback turn
	Theme     string
	Style     InteractionStyle
	TurnCount int
	Fallback  bool // true when generation failed and the warm fallback was served
}

// Init creates a Companion: loads and validates the catalog, opens the store,
// resolves the generator, and starts the fact-retention worker.
// An empty catalog is fatal here — the service must not accept traffic.
func Init(cfg Config) (*Companion, error) {
	cfg.ApplyDefaults()

	catalog, err := LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}

	store, err := NewStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	generator := cfg.Generator
	if generator == nil && cfg.GroqAPIKey != "" {
		generator = NewGroqGenerator(cfg.GroqAPIKey)
	}

	c := &Companion{
		store:     store,
		catalog:   catalog,
		selector:  NewSelector(catalog, store, cfg.PreferStoryNovelty),
		styles:    NewStyleEstimator(store, cfg.StyleWindow, cfg.ShortUtteranceLen),
		extractor: NewFactExtractor(store),
		composer:  NewComposer(store),
		generator: generator,
		config:    cfg,
	}

	c.startRetentionWorker(cfg.RetentionInterval)

	log.Printf("[petpal] Initialized (db=%s, catalog=%d stories)", cfg.DBPath, catalog.Len())
	return c, nil
}

// Chat runs one conversation turn. Turns for the same user are serialized;
// turns for different users run concurrently.
//
// Memory commit policy: the observed side of the turn (turn metadata, style,
// extracted facts) is recorded up front, but the story is marked told only
// after generation succeeds. A reply the user never received never burns a
// story, so a timed-out turn can be retried with identical selection.
func (c *Companion) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	if err := validateUserID(req.UserID); err != nil {
		return ChatResponse{}, err
	}
	if c.generator == nil {
		return ChatResponse{}, fmt.Errorf("petpal: no generator configured")
	}

	unlock := c.lockUser(req.UserID)
	defer unlock()

	profile, err := c.store.GetOrCreateProfile(req.UserID)
	if err != nil {
		return ChatResponse{}, err
	}

	if err := c.extractor.Observe(profile, req.Utterance); err != nil {
		return ChatResponse{}, err
	}

	meta := TurnMeta{
		Length:     utf8.RuneCountInString(req.Utterance),
		QuickReply: IsQuickReply(req.Utterance),
	}
	style, err := c.styles.Observe(profile, meta)
	if err != nil {
		return ChatResponse{}, err
	}

	story, err := c.selectStory(profile)
	if err != nil {
		return ChatResponse{}, err
	}

	plan := c.composer.Compose(profile, story)
	prompt := BuildPrompt(PersonaRules(), profile, plan, req.Utterance)

	genCtx, cancel := context.WithTimeout(ctx, c.config.GenerateTimeout)
	defer cancel()

	reply, err := c.generator.Generate(genCtx, prompt)
	if err != nil {
		if errors.Is(genCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %v", ErrGenerationTimeout, err)
		}
		log.Printf("[petpal] Generation failed for %s: %v", req.UserID, err)
		return ChatResponse{
			Reply:     FallbackReply(profile),
			Style:     style,
			TurnCount: profile.TurnCount,
			Fallback:  true,
		}, nil
	}

	if err := c.store.MarkStoryTold(req.UserID, story.ID, story.Theme); err != nil {
		return ChatResponse{}, err
	}

	log.Printf("[petpal] Turn %d for %s: story=%s style=%s", profile.TurnCount, req.UserID, story.ID, style)
	return ChatResponse{
		Reply:     reply,
		StoryID:   story.ID,
		Theme:     story.Theme,
		Style:     style,
		TurnCount: profile.TurnCount,
	}, nil
}

// selectStory runs the selection policy, treating a catalog lookup miss as a
// reset trigger: stale profile history referencing unknown story ids is
// cleared and selection runs once more.
func (c *Companion) selectStory(profile *UserProfile) (StoryEntry, error) {
	story, err := c.selector.Select(profile)
	if err != nil {
		return StoryEntry{}, err
	}

	if _, err := c.catalog.ByID(story.ID); err != nil {
		if !errors.Is(err, ErrNotFound) {
			return StoryEntry{}, err
		}
		log.Printf("[petpal] Catalog inconsistency for %s (story %s), resetting history", profile.UserID, story.ID)
		if err := c.store.Reset(profile.UserID); err != nil {
			return StoryEntry{}, err
		}
		profile.ToldStoryIDs = make(map[string]bool)
		profile.UsedThemes = make(map[string]bool)
		return c.selector.Select(profile)
	}
	return story, nil
}

// Profile returns the current memory snapshot for a user.
func (c *Companion) Profile(userID string) (*UserProfile, error) {
	return c.store.GetOrCreateProfile(userID)
}

// ResetStories clears the user's told-story and used-theme history. All
// other memory is untouched.
func (c *Companion) ResetStories(userID string) error {
	unlock := c.lockUser(userID)
	defer unlock()
	return c.store.Reset(userID)
}

// Catalog returns the loaded story catalog.
func (c *Companion) Catalog() *Catalog {
	return c.catalog
}

// Close stops the retention worker and closes the database.
func (c *Companion) Close() error {
	if c.cancelRetention != nil {
		c.cancelRetention()
	}
	return c.store.Close()
}

// lockUser serializes turns per user id. Mutexes are created on demand and
// kept for the process lifetime; the user population is small enough that
// they are never reclaimed.
func (c *Companion) lockUser(userID string) func() {
	v, _ := c.userLocks.LoadOrStore(userID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
