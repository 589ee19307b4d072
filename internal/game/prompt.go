package game

import (
	"fmt"

	"github.com/suPer8Hu/dmbot/internal/ai"
	"github.com/suPer8Hu/dmbot/internal/campaign"
)

// FallbackNarration replaces the narrator's line whenever generation fails.
const FallbackNarration = "I apologize, but I'm having trouble processing that. Could you rephrase?"

const narratorDirective = `You are running the game via Telegram. Be engaging, descriptive, and fair.
Keep responses concise but vivid. Handle dice rolls when players request them.
Focus on storytelling and player agency.`

// SystemPrompt is the instruction sent ahead of every generation request.
func SystemPrompt(campaignName string) string {
	return fmt.Sprintf("You are an expert Dungeon Master for a Dungeons & Dragons campaign called \"%s\".\n%s", campaignName, narratorDirective)
}

func generatorRole(r campaign.Role) string {
	if r == campaign.RoleNarrator {
		return ai.RoleAssistant
	}
	return ai.RoleUser
}

// buildRequest lays out the window followed by the new action.
func buildRequest(campaignName string, window []campaign.Turn, action string, s Settings) ai.Request {
	msgs := make([]ai.Message, 0, len(window)+1)
	for _, t := range window {
		msgs = append(msgs, ai.Message{Role: generatorRole(t.Role), Content: t.Content})
	}
	msgs = append(msgs, ai.Message{Role: ai.RoleUser, Content: action})
	return ai.Request{
		System:      SystemPrompt(campaignName),
		Messages:    msgs,
		Temperature: s.Temperature,
		MaxTokens:   s.MaxTokens,
	}
}
