// petpal-mcp exposes the PetPal companion as an MCP stdio server.
//
// Environment variables:
//
//	PETPAL_DB_PATH — SQLite database path (default: ./data/petpal.db)
//	PETPAL_CATALOG — optional story catalog YAML (default: embedded)
//	GROQ_API_KEY   — Groq API key for the text generator
//
// Usage:
//
//	go install github.com/petpalhq/petpal/cmd/petpal-mcp
//	petpal-mcp
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/petpalhq/petpal"
)

func main() {
	dbPath := os.Getenv("PETPAL_DB_PATH")
	if dbPath == "" {
		dbPath = "./data/petpal.db"
	}

	companion, err := petpal.Init(petpal.Config{
		DBPath:      dbPath,
		CatalogPath: os.Getenv("PETPAL_CATALOG"),
		GroqAPIKey:  os.Getenv("GROQ_API_KEY"),
	})
	if err != nil {
		log.Fatalf("petpal init: %v", err)
	}
	defer companion.Close()

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "petpal-mcp",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "chat",
		Description: "Send a message to PetPal for a user and get the composed reply.",
	}, chatHandler(companion))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "profile",
		Description: "Inspect what PetPal remembers about a user: name, preferences, facts, stories heard, interaction style.",
	}, profileHandler(companion))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "reset",
		Description: "Clear a user's told-story and compliment-theme history so stories may repeat. Other memory is kept.",
	}, resetHandler(companion))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "catalog",
		Description: "List the loaded story catalog in selection order.",
	}, catalogHandler(companion))

	if err := server.Run(context.Background(), &mcp.StdioTransport{}); err != nil {
		log.Fatalf("petpal-mcp: %v", err)
	}
}

// --- Input types ---

type chatInput struct {
	UserID  string `json:"user_id" jsonschema:"Stable user identifier"`
	Message string `json:"message" jsonschema:"The user's utterance or quick-reply selection"`
}

type profileInput struct {
	UserID string `json:"user_id" jsonschema:"Stable user identifier"`
}

type resetInput struct {
	UserID string `json:"user_id" jsonschema:"Stable user identifier"`
}

type catalogInput struct{}

// --- Handlers ---

func chatHandler(c *petpal.Companion) func(context.Context, *mcp.CallToolRequest, chatInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input chatInput) (*mcp.CallToolResult, any, error) {
		resp, err := c.Chat(ctx, petpal.ChatRequest{UserID: input.UserID, Utterance: input.Message})
		if err != nil {
			return textResult(fmt.Sprintf("error: %v", err)), nil, nil
		}
		return textResult(jsonString(map[string]any{
			"reply":             resp.Reply,
			"story_id":          resp.StoryID,
			"theme":             resp.Theme,
			"interaction_style": resp.Style,
			"turn_count":        resp.TurnCount,
			"fallback":          resp.Fallback,
		})), nil, nil
	}
}

func profileHandler(c *petpal.Companion) func(context.Context, *mcp.CallToolRequest, profileInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input profileInput) (*mcp.CallToolResult, any, error) {
		p, err := c.Profile(input.UserID)
		if err != nil {
			return textResult(fmt.Sprintf("error: %v", err)), nil, nil
		}

		facts := make([]map[string]string, len(p.Facts))
		for i, f := range p.Facts {
			facts[i] = map[string]string{"key": f.Key, "value": f.Value}
		}
		stories := make([]string, 0, len(p.ToldStoryIDs))
		for id := range p.ToldStoryIDs {
			stories = append(stories, id)
		}

		return textResult(jsonString(map[string]any{
			"user_id":           p.UserID,
			"display_name":      p.DisplayName,
			"pet_preference":    p.PetPreference,
			"interaction_style": p.InteractionStyle,
			"turn_count":        p.TurnCount,
			"facts":             facts,
			"stories_heard":     stories,
		})), nil, nil
	}
}

func resetHandler(c *petpal.Companion) func(context.Context, *mcp.CallToolRequest, resetInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input resetInput) (*mcp.CallToolResult, any, error) {
		if err := c.ResetStories(input.UserID); err != nil {
			return textResult(fmt.Sprintf("error: %v", err)), nil, nil
		}
		return textResult(`{"status": "reset"}`), nil, nil
	}
}

func catalogHandler(c *petpal.Companion) func(context.Context, *mcp.CallToolRequest, catalogInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input catalogInput) (*mcp.CallToolResult, any, error) {
		stories := c.Catalog().Stories()
		out := make([]map[string]any, len(stories))
		for i, st := range stories {
			out[i] = map[string]any{
				"id":       st.ID,
				"theme":    st.Theme,
				"metaphor": st.Metaphor,
			}
		}
		return textResult(jsonString(out)), nil, nil
	}
}

// --- Helpers ---

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func jsonString(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("marshal error: %v", err)
	}
	return string(b)
}
