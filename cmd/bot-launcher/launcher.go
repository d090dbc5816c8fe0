package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/TheRealTwizzy/snow_clicker/internal/supabase"
)

const (
	openGameText   = "Open Snow Clicker"
	openButtonText = "Open Mini App"
	tapButtonText  = "Tap the button to open the game."

	defaultDisplayName = "Player"
	newcomerBadge      = "Rookie"
	seasonName         = "Winter 2025"
	achievementsStart  = "0/30"

	pollErrorBackoff = 5 * time.Second
)

type Messenger interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error)
	SendMessage(ctx context.Context, msg SendMessageRequest) error
}

type UserUpserter interface {
	UpsertUser(ctx context.Context, user supabase.UserRecord) error
}

// Launcher answers chat messages with a button that opens the Mini App.
type Launcher struct {
	tg          Messenger
	users       UserUpserter
	webAppURL   string
	pollTimeout time.Duration
}

// NewLauncher builds a launcher. A nil users skips registration.
func NewLauncher(tg Messenger, users UserUpserter, webAppURL string, pollTimeout time.Duration) *Launcher {
	return &Launcher{tg: tg, users: users, webAppURL: webAppURL, pollTimeout: pollTimeout}
}

// Run polls for updates until ctx ends.
func (l *Launcher) Run(ctx context.Context) error {
	var offset int64
	for {
		updates, err := l.tg.GetUpdates(ctx, offset, l.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logError(fmt.Sprintf("poll failed: %v", err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pollErrorBackoff):
			}
			continue
		}

		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			if err := l.HandleUpdate(ctx, update); err != nil {
				logError(fmt.Sprintf("update %d: %v", update.UpdateID, err))
			}
		}
	}
}

func (l *Launcher) HandleUpdate(ctx context.Context, update Update) error {
	msg := update.Message
	if msg == nil {
		return nil
	}

	switch command := commandOf(msg.Text); {
	case command == "start" || command == "menu":
		if msg.From != nil {
			if err := l.register(ctx, msg.From); err != nil {
				logError(fmt.Sprintf("supabase upsert for %d: %v", msg.From.ID, err))
			}
		}
		return l.tg.SendMessage(ctx, SendMessageRequest{
			ChatID: msg.Chat.ID,
			Text:   openGameText,
			ReplyMarkup: &InlineKeyboardMarkup{
				InlineKeyboard: [][]InlineKeyboardButton{{
					{Text: openButtonText, WebApp: &WebAppInfo{URL: l.webAppURL}},
				}},
			},
		})
	case command != "":
		return nil
	default:
		return l.tg.SendMessage(ctx, SendMessageRequest{ChatID: msg.Chat.ID, Text: tapButtonText})
	}
}

func (l *Launcher) register(ctx context.Context, from *TelegramUser) error {
	if l.users == nil {
		return nil
	}
	return l.users.UpsertUser(ctx, userRecordOf(from))
}

func userRecordOf(from *TelegramUser) supabase.UserRecord {
	record := supabase.UserRecord{
		ID:           fmt.Sprint(from.ID),
		DisplayName:  from.FirstName,
		Badges:       []string{newcomerBadge},
		Season:       seasonName,
		Achievements: achievementsStart,
	}
	if record.DisplayName == "" {
		record.DisplayName = defaultDisplayName
	}
	if from.Username != "" {
		username := from.Username
		record.Username = &username
	}
	if from.PhotoURL != "" {
		photo := from.PhotoURL
		record.PhotoURL = &photo
	}
	return record
}

// commandOf returns the bot command a message starts with, without the slash
// or @botname suffix, or "" for plain text.
func commandOf(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	command := strings.Fields(text)[0][1:]
	if at := strings.IndexByte(command, '@'); at >= 0 {
		command = command[:at]
	}
	if command == "" {
		return "/"
	}
	return strings.ToLower(command)
}
