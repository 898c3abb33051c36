package telegramadapter

import (
	"fmt"
	"strings"
	"time"

	"github.com/dkalashnik/telegram-session-log/pkg/ports/botport"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// FromUpdate converts a Telegram update into a botport.Message. Updates that carry no user message
// (callbacks, channel posts, service messages without an author) are reported with ok=false.
func FromUpdate(update tgbotapi.Update) (botport.Message, bool) {
	message := update.Message
	if message == nil || message.From == nil || message.Chat == nil {
		return botport.Message{}, false
	}

	text := message.Text
	if text == "" {
		text = message.Caption
	}

	return botport.Message{
		AuthorID:    message.From.ID,
		AuthorName:  displayName(message.From),
		ChatID:      message.Chat.ID,
		MessageID:   message.MessageID,
		Text:        text,
		Attachments: attachmentsFromMessage(message),
		Date:        time.Unix(int64(message.Date), 0).UTC(),
	}, true
}

func displayName(from *tgbotapi.User) string {
	if from.UserName != "" {
		return from.UserName
	}
	name := from.FirstName
	if from.LastName != "" {
		name += " " + from.LastName
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Sprintf("user%d", from.ID)
	}
	return name
}

func attachmentsFromMessage(message *tgbotapi.Message) []botport.Attachment {
	var out []botport.Attachment
	if doc := message.Document; doc != nil {
		name := doc.FileName
		if name == "" {
			name = "document_" + doc.FileUniqueID
		}
		out = append(out, botport.Attachment{FileID: doc.FileID, FileName: name, Size: int64(doc.FileSize)})
	}
	if n := len(message.Photo); n > 0 {
		// Telegram lists photo sizes smallest first.
		largest := message.Photo[n-1]
		out = append(out, botport.Attachment{
			FileID:   largest.FileID,
			FileName: "photo_" + largest.FileUniqueID + ".jpg",
			Size:     int64(largest.FileSize),
		})
	}
	return out
}
