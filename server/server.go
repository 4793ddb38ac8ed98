// Package server exposes the PetPal companion over HTTP. Transport only:
// all memory and composition logic lives in the root petpal package.
package server

import (
	"errors"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/petpalhq/petpal"
)

// ChatRequest is the inbound chat payload. When user_id is omitted a fresh
// one is minted and returned, so anonymous clients keep continuity by
// echoing it back.
type ChatRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

// ChatResponse mirrors petpal.ChatResponse plus the resolved user id.
type ChatResponse struct {
	UserID    string `json:"user_id"`
	Reply     string `json:"reply"`
	StoryID   string `json:"story_id,omitempty"`
	Theme     string `json:"theme,omitempty"`
	Style     string `json:"interaction_style"`
	TurnCount int    `json:"turn_count"`
	Fallback  bool   `json:"fallback,omitempty"`
}

// ProfileResponse is the memory snapshot returned for a user.
type ProfileResponse struct {
	UserID        string            `json:"user_id"`
	DisplayName   string            `json:"display_name,omitempty"`
	PetPreference string            `json:"pet_preference"`
	Style         string            `json:"interaction_style"`
	TurnCount     int               `json:"turn_count"`
	StoriesHeard  []string          `json:"stories_heard"`
	Facts         map[string]string `json:"facts"`
}

// Server wires the companion into an Echo app.
type Server struct {
	echo      *echo.Echo
	companion *petpal.Companion
}

// New creates the HTTP server around an initialized companion.
func New(companion *petpal.Companion) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger(), middleware.Recover(), middleware.CORS())

	s := &Server{echo: e, companion: companion}

	e.POST("/chat", s.handleChat)
	e.GET("/session/:user_id", s.handleProfile)
	e.POST("/session/:user_id/reset", s.handleReset)
	e.GET("/health", s.handleHealth)

	return s
}

// Start blocks serving HTTP on the given address.
func (s *Server) Start(addr string) error {
	log.Printf("[petpal] HTTP listening on %s", addr)
	return s.echo.Start(addr)
}

func (s *Server) handleChat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message must not be empty")
	}
	if req.UserID == "" {
		req.UserID = uuid.NewString()
	}

	resp, err := s.companion.Chat(c.Request().Context(), petpal.ChatRequest{
		UserID:    req.UserID,
		Utterance: req.Message,
	})
	if err != nil {
		if errors.Is(err, petpal.ErrInvalidIdentifier) {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid user_id")
		}
		log.Printf("[petpal] chat error: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "something went wrong, please try again 🐾")
	}

	return c.JSON(http.StatusOK, ChatResponse{
		UserID:    req.UserID,
		Reply:     resp.Reply,
		StoryID:   resp.StoryID,
		Theme:     resp.Theme,
		Style:     string(resp.Style),
		TurnCount: resp.TurnCount,
		Fallback:  resp.Fallback,
	})
}

func (s *Server) handleProfile(c echo.Context) error {
	profile, err := s.companion.Profile(c.Param("user_id"))
	if err != nil {
		if errors.Is(err, petpal.ErrInvalidIdentifier) {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid user_id")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "error loading profile")
	}

	stories := make([]string, 0, len(profile.ToldStoryIDs))
	for id := range profile.ToldStoryIDs {
		stories = append(stories, id)
	}
	facts := make(map[string]string, len(profile.Facts))
	for _, f := range profile.Facts {
		facts[f.Key] = f.Value // newest wins per key
	}

	return c.JSON(http.StatusOK, ProfileResponse{
		UserID:        profile.UserID,
		DisplayName:   profile.DisplayName,
		PetPreference: string(profile.PetPreference),
		Style:         string(profile.InteractionStyle),
		TurnCount:     profile.TurnCount,
		StoriesHeard:  stories,
		Facts:         facts,
	})
}

func (s *Server) handleReset(c echo.Context) error {
	if err := s.companion.ResetStories(c.Param("user_id")); err != nil {
		if errors.Is(err, petpal.ErrInvalidIdentifier) {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid user_id")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "error resetting session")
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "reset"})
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":  "healthy",
		"stories": s.companion.Catalog().Len(),
	})
}
