package game

import (
	"fmt"
	"strings"

	"github.com/suPer8Hu/dmbot/internal/campaign"
	"github.com/suPer8Hu/dmbot/internal/dice"
)

const (
	WelcomeText = `🎲 Welcome to D&D AI DM!

I'm your AI Dungeon Master, ready to run adventures right here in Telegram.

Commands:
/newgame <name> - Start a new campaign
/join <code> [character] - Join an existing game
/roll <dice> - Roll dice (e.g., /roll 2d6+3)
/status - Check your character and campaign
/help - See all commands

Ready to adventure? Let's begin! 🧙‍♂️`

	HelpText = `D&D AI DM Commands:

🎮 Game Commands:
/newgame <name> - Start a new campaign
/join <code> [character] - Join an existing game
/status - Check your character and campaign
/characters - List all characters in campaign

🎲 Dice & Actions:
/roll <dice> - Roll dice (e.g., /roll 2d6+3, /roll d20)

🗺️ Game Flow:
/dm <message> - Speak to the DM directly

Need more help? Just ask me anything! 🧙‍♂️`

	// ConsideringText is shown while narration is being generated.
	ConsideringText = "🧙‍♂️ The DM considers your action..."

	NotInCampaignText = "You're not in any campaign yet. Use /newgame to start one!"
	FailureText       = "Something went wrong on our side. Please try again in a moment."
	UnknownText       = "I don't know that command. Use /help to see what I can do."
	ThrottledText     = "Easy there, adventurer! Wait a moment before your next command."

	newCampaignUsage = "Usage: /newgame <campaign name>\nExample: /newgame The Lost Mine of Phandelver"
	joinUsage        = "Usage: /join <code> [character name]\nExample: /join 42 Tordek"
	speakUsage       = "Usage: /dm <your message or action>\nExample: /dm I want to search the room for traps"
	rollUsage        = "Usage: /roll <dice>\nExample: /roll 2d6+3, /roll d20"
)

func campaignCreatedText(c *campaign.Campaign, dmName string) string {
	return fmt.Sprintf("🏰 New Campaign Created!\n\nCampaign: %s\nID: %d\nDM: %s\n\nUse /join %d to add your character!",
		c.Name, c.ID, dmName, c.ID)
}

func joinedText(c *campaign.Campaign, ch *campaign.Character) string {
	return fmt.Sprintf("⚔️ %s joins %s!\n\nUse /dm to tell the DM what you do.", ch.CharacterName, c.Name)
}

func unknownCampaignText(code string) string {
	return fmt.Sprintf("There is no campaign with code %s. Check the code and try again.", code)
}

func rollText(expr string, r dice.Result) string {
	return fmt.Sprintf("🎲 %s: %s", expr, r.Breakdown())
}

func invalidRollText(expr string) string {
	return fmt.Sprintf("Invalid dice format: %s\nTry: /roll 2d6+3", expr)
}

func statusText(c *campaign.Campaign, ch *campaign.Character, sess *campaign.Session, rolls []campaign.DiceRoll) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📜 Campaign: %s (ID %d)\n", c.Name, c.ID)
	fmt.Fprintf(&b, "🧝 Character: %s", ch.CharacterName)
	if ch.ClassLevel != "" {
		fmt.Fprintf(&b, ", %s", ch.ClassLevel)
	}
	b.WriteString("\n")
	if sess != nil {
		fmt.Fprintf(&b, "📖 Session %d: %d entries\n", sess.SessionNumber, len(sess.Messages))
	} else {
		b.WriteString("📖 No session yet\n")
	}
	if len(rolls) > 0 {
		b.WriteString("🎲 Recent rolls:\n")
		for _, r := range rolls {
			fmt.Fprintf(&b, "  %s = %d\n", r.Expression, r.Result)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func charactersText(c *campaign.Campaign, chars []campaign.Character) string {
	if len(chars) == 0 {
		return fmt.Sprintf("No characters in %s yet. Use /join %d to add one.", c.Name, c.ID)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "👥 Characters in %s:\n", c.Name)
	for _, ch := range chars {
		fmt.Fprintf(&b, "• %s", ch.CharacterName)
		if ch.ClassLevel != "" {
			fmt.Fprintf(&b, " (%s)", ch.ClassLevel)
		}
		if ch.PlayerName != "" {
			fmt.Fprintf(&b, " played by %s", ch.PlayerName)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
