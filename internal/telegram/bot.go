package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/zombor/card-scanner/internal/scan"
	"github.com/zombor/card-scanner/internal/source"
)

// maxDownloadSize matches the Bot API's own file download limit
const maxDownloadSize = 20 << 20

const tooLargeText = "That file is too large. Please send a smaller photo."

// errTooLarge means a file exceeded the download limit
var errTooLarge = errors.New("file too large")

const helpText = "Send me a photo of the front of a credit card and I will reply with its number.\n" +
	"Photos sent as files work too. Nothing you send is stored."

// BotAPI is the part of *tgbotapi.BotAPI the bot uses
type BotAPI interface {
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Processor runs one scan
type Processor interface {
	Process(ctx context.Context, src source.ImageSource) *scan.Outcome
}

// Bot answers card photos sent over Telegram
type Bot struct {
	api       BotAPI
	processor Processor
	client    *http.Client
	maxSize   int64
}

// New creates a Bot from a token
func New(token string, processor Processor) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connecting to telegram: %w", err)
	}
	slog.Info("Authorized on telegram", "username", api.Self.UserName)
	return NewWithAPI(api, processor, &http.Client{Timeout: 60 * time.Second}), nil
}

// NewWithAPI creates a Bot with a custom API client for testing
func NewWithAPI(api BotAPI, processor Processor, client *http.Client) *Bot {
	return &Bot{
		api:       api,
		processor: processor,
		client:    client,
		maxSize:   maxDownloadSize,
	}
}

var reRetryAfter = regexp.MustCompile(`(?i)retry after\s+(\d+)`)

// retryDelay picks how long to wait after a failed poll
func retryDelay(err error) time.Duration {
	const (
		minDelay = 1 * time.Second
		maxDelay = 15 * time.Second
	)
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) && tgErr.RetryAfter > 0 {
		return min(time.Duration(tgErr.RetryAfter)*time.Second, maxDelay)
	}
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "too many requests") {
		if m := reRetryAfter.FindStringSubmatch(s); len(m) == 2 {
			if n, _ := strconv.Atoi(m[1]); n > 0 {
				return min(time.Duration(n)*time.Second, maxDelay)
			}
		}
		return 3 * time.Second
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return 2 * time.Second
	}
	return minDelay
}

// Run long-polls for updates until ctx is done
func (b *Bot) Run(ctx context.Context) error {
	offset := 0
	for {
		if err := ctx.Err(); err != nil {
			slog.Info("Telegram polling stopped")
			return nil
		}

		u := tgbotapi.NewUpdate(offset)
		u.Timeout = 30
		updates, err := b.api.GetUpdates(u)
		if err != nil {
			d := retryDelay(err)
			slog.Warn("Telegram polling failed", "error", err, "retry_in", d)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(d):
			}
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			b.HandleUpdate(ctx, upd)
		}
	}
}

// HandleUpdate answers a single update
func (b *Bot) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil || msg.Chat == nil {
		return
	}

	if msg.IsCommand() {
		switch msg.Command() {
		case "start", "help":
			b.reply(msg, helpText)
		default:
			b.reply(msg, "Unknown command. Send /help for usage.")
		}
		return
	}

	fileID, name, contentType, ok := imageOf(msg)
	if !ok {
		b.reply(msg, helpText)
		return
	}

	data, err := b.download(ctx, fileID)
	if errors.Is(err, errTooLarge) {
		slog.Warn("Telegram file too large", "chat_id", msg.Chat.ID, "limit", b.maxSize)
		b.reply(msg, tooLargeText)
		return
	}
	if err != nil {
		slog.Error("Failed to download telegram file", "chat_id", msg.Chat.ID, "error", err)
		b.reply(msg, scan.MessageOpenFailed)
		return
	}

	outcome := b.processor.Process(ctx, source.Upload{
		Name:        name,
		Data:        data,
		ContentType: contentType,
	})
	b.reply(msg, replyText(outcome))
}

// imageOf returns the file to scan from a message: the largest photo size, or
// a document that is an image
func imageOf(msg *tgbotapi.Message) (fileID, name, contentType string, ok bool) {
	if len(msg.Photo) > 0 {
		largest := msg.Photo[0]
		for _, p := range msg.Photo[1:] {
			if p.Width*p.Height > largest.Width*largest.Height {
				largest = p
			}
		}
		return largest.FileID, "photo.jpg", "image/jpeg", true
	}
	if isImageDocument(msg.Document) {
		return msg.Document.FileID, msg.Document.FileName, msg.Document.MimeType, true
	}
	return "", "", "", false
}

// isImageDocument reports whether a document is something the scanner can read
func isImageDocument(doc *tgbotapi.Document) bool {
	if doc == nil || doc.FileID == "" {
		return false
	}
	mime := strings.ToLower(doc.MimeType)
	if strings.HasPrefix(mime, "image/") || mime == "application/pdf" {
		return true
	}
	return source.IsImageFile(doc.FileName)
}

// replyText is the chat message for an outcome
func replyText(outcome *scan.Outcome) string {
	if !outcome.Found() {
		return outcome.Message
	}
	if outcome.Brand == "" {
		return outcome.Display
	}
	return fmt.Sprintf("%s\n%s", outcome.Display, outcome.Brand)
}

func (b *Bot) download(ctx context.Context, fileID string) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("getting file url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("downloading file: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, b.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	if int64(len(data)) > b.maxSize {
		return nil, errTooLarge
	}
	return data, nil
}

func (b *Bot) reply(msg *tgbotapi.Message, text string) {
	out := tgbotapi.NewMessage(msg.Chat.ID, text)
	out.ReplyToMessageID = msg.MessageID
	if _, err := b.api.Send(out); err != nil {
		slog.Error("Failed to send telegram message", "chat_id", msg.Chat.ID, "error", err)
	}
}
