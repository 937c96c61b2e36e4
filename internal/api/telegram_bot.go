// Package api provides handlers for external APIs and interfaces
package api

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/abelzeko/water-router/internal/usecases"
)

const helpText = "Available commands:\n" +
	"/start - Start the bot\n" +
	"/rivers - Show the list of rivers\n" +
	"/river [name] - Show information for a specific river\n" +
	"/reaches - Show the reaches that can be forecast\n" +
	"/forecast [reach] - Route the latest upstream discharge through a reach\n" +
	"/help - Show this help message\n\n" +
	"You can also just ask, e.g. \"how high is the Sava in Šabac?\""

// TelegramBot handles interactions with the Telegram API
type TelegramBot struct {
	bot     *tgbotapi.BotAPI
	useCase *usecases.RiverUseCase
	log     *zap.SugaredLogger
}

// NewTelegramBot creates a new Telegram bot handler
func NewTelegramBot(botToken string, useCase *usecases.RiverUseCase, logger *zap.SugaredLogger) (*TelegramBot, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return &TelegramBot{
		bot:     bot,
		useCase: useCase,
		log:     logger,
	}, nil
}

// Start begins listening for and handling Telegram messages until ctx is done
func (t *TelegramBot) Start(ctx context.Context) {
	t.log.Infof("Authorized on Telegram account %s", t.bot.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := t.bot.GetUpdatesChan(u)
	t.log.Info("Bot is now listening for messages...")

	for {
		select {
		case <-ctx.Done():
			t.bot.StopReceivingUpdates()
			t.log.Info("Bot stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil {
				continue
			}

			t.log.Infow("Received message",
				"user", update.Message.From.UserName,
				"user_id", update.Message.From.ID,
				"text", update.Message.Text)

			t.handleMessage(ctx, update)
		}
	}
}

// handleMessage processes a Telegram message update
func (t *TelegramBot) handleMessage(ctx context.Context, update tgbotapi.Update) {
	msg := tgbotapi.NewMessage(update.Message.Chat.ID, t.respond(ctx, update.Message))

	t.log.Debugf("Sending response to user %s", update.Message.From.UserName)
	if _, err := t.bot.Send(msg); err != nil {
		t.log.Errorf("Error sending message: %v", err)
	}
}

// respond builds the reply text for a message
func (t *TelegramBot) respond(ctx context.Context, message *tgbotapi.Message) string {
	if message.IsCommand() {
		return t.handleCommand(ctx, message)
	}
	return t.handleNonCommand(ctx, message)
}

// handleCommand processes commands like /start, /help, etc.
func (t *TelegramBot) handleCommand(ctx context.Context, message *tgbotapi.Message) string {
	args := strings.TrimSpace(message.CommandArguments())
	t.log.Infof("Handling /%s command with args '%s' for user %s", message.Command(), args, userName(message))

	switch message.Command() {
	case "start":
		return "Welcome to the Water Bot! Use /rivers to see the list of available rivers, /reaches for forecasts or /help for more information."
	case "help":
		return helpText
	case "rivers":
		return t.handleRiversCommand()
	case "river":
		return t.handleRiverCommand(args)
	case "reaches":
		return t.handleReachesCommand()
	case "forecast":
		return t.handleForecastCommand(ctx, args)
	default:
		t.log.Warnf("Received unknown command /%s from user %s", message.Command(), userName(message))
		return "Unknown command. Use /help to see available commands."
	}
}

// handleRiversCommand processes the /rivers command
func (t *TelegramBot) handleRiversCommand() string {
	rivers, err := t.useCase.GetAvailableRivers()
	if err != nil {
		t.log.Errorf("Error fetching river data: %v", err)
		return "Error fetching river data. Please try again later."
	}

	var b strings.Builder
	b.WriteString("Available rivers:\n\n")
	for _, river := range rivers {
		b.WriteString("• " + river + "\n")
	}
	b.WriteString("\nUse /river [name] to get detailed information.")
	if lastUpdate, err := t.useCase.GetLastUpdateTime(); err == nil && !lastUpdate.IsZero() {
		b.WriteString(fmt.Sprintf("\n\n🕒 Last update: %s", lastUpdate.Format("2006-01-02 15:04:05 MST")))
	}
	return b.String()
}

// handleRiverCommand processes the /river [name] command
func (t *TelegramBot) handleRiverCommand(args string) string {
	if args == "" {
		return "Please specify a river name. Example: /river ДУНАВ"
	}

	riverData, err := t.useCase.GetRiverDataByName(args)
	if err != nil {
		t.log.Errorf("Error fetching river data: %v", err)
		return "Error fetching river data. Please try again later."
	}
	if len(riverData) == 0 {
		return fmt.Sprintf("No information found for river '%s'. Use /rivers to see the available rivers.", args)
	}
	return t.useCase.FormatRiverInfo(riverData)
}

// handleReachesCommand processes the /reaches command
func (t *TelegramBot) handleReachesCommand() string {
	reaches := t.useCase.Reaches()
	if len(reaches) == 0 {
		return "No forecast reaches are configured."
	}

	var b strings.Builder
	b.WriteString("Forecast reaches:\n\n")
	for _, r := range reaches {
		b.WriteString(fmt.Sprintf("• %s (%s / %s)", r.Name, r.River, r.Station))
		if r.Description != "" {
			b.WriteString(" - " + r.Description)
		}
		b.WriteString("\n")
	}
	b.WriteString("\nUse /forecast [reach] to route the latest data.")
	return b.String()
}

// handleForecastCommand processes the /forecast [reach] command
func (t *TelegramBot) handleForecastCommand(ctx context.Context, args string) string {
	if args == "" {
		return "Please specify a reach. Use /reaches to see available ones."
	}
	return t.useCase.ForecastMessage(ctx, args)
}

// handleNonCommand processes regular messages
func (t *TelegramBot) handleNonCommand(ctx context.Context, message *tgbotapi.Message) string {
	if strings.HasPrefix(message.Text, "/river ") {
		return t.handleRiverCommand(strings.TrimSpace(strings.TrimPrefix(message.Text, "/river ")))
	}

	reply, err := t.useCase.HandleNaturalLanguageQuery(ctx, message.Text)
	if err != nil {
		t.log.Errorf("Error handling query: %v", err)
		return "I don't understand. Use /help to see available commands."
	}
	return reply
}

func userName(message *tgbotapi.Message) string {
	if message.From == nil {
		return ""
	}
	return message.From.UserName
}
