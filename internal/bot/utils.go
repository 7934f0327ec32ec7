package bot

import (
	"fmt"
	"math"
	"strings"

	"github.com/lithammer/dedent"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func formatReplyText(text string, a ...any) string {
	return fmt.Sprintf(strings.TrimSpace(dedent.Dedent(text)), a...)
}

func parseCommand(s string) (string, []string) {
	parts := strings.Split(s, " ")
	// Group chats append the bot name: /yeni@kasko_bot
	command, _, _ := strings.Cut(parts[0], "@")
	return command, parts[1:]
}

var turkishPrinter = message.NewPrinter(language.Turkish)

// formatTRY formats a lira amount with Turkish digit grouping, rounded to
// whole lira: 550000 -> "550.000 ₺".
func formatTRY(amount float64) string {
	return turkishPrinter.Sprintf("%d ₺", int64(math.Round(amount)))
}
