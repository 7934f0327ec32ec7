package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/raine/kasko-bot/internal/llm"
	"github.com/raine/kasko-bot/internal/pricing"
	"github.com/raine/kasko-bot/internal/storage"
	"github.com/raine/kasko-bot/internal/workflow"
	"github.com/rs/zerolog/log"
)

// DefaultAnalysisTimeout bounds a single extraction call.
const DefaultAnalysisTimeout = 90 * time.Second

const xlsxMIMEType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// BotAPI defines the interface for Telegram bot API operations.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// ImportHistory reports the most recent committed price import.
type ImportHistory interface {
	LastImport() (*storage.PriceImport, error)
}

// Bot is the main Telegram bot handler.
type Bot struct {
	tg         BotAPI
	state      BotState
	extractor  llm.Extractor
	catalog    *pricing.Catalog
	importer   *pricing.Importer
	history    ImportHistory // May be nil
	adminID    int64
	downloader *FileDownloader

	analysisTimeout time.Duration
	analyses        sync.WaitGroup // Background analyses in flight
}

// NewBot creates a new Bot instance. The extractor must be set with
// SetExtractor before updates are handled.
func NewBot(tg BotAPI, catalog *pricing.Catalog, importer *pricing.Importer, history ImportHistory, adminID int64) *Bot {
	bot := &Bot{
		tg:              tg,
		catalog:         catalog,
		importer:        importer,
		history:         history,
		adminID:         adminID,
		downloader:      NewFileDownloader(),
		analysisTimeout: DefaultAnalysisTimeout,
	}
	bot.state = bot.NewBotState()
	return bot
}

// SetExtractor sets the registration extractor, usually a cached Gemini extractor.
func (b *Bot) SetExtractor(extractor llm.Extractor) {
	b.extractor = extractor
}

// Shutdown stops all session workers and cancels running analyses.
func (b *Bot) Shutdown() {
	b.state.Shutdown()
	b.analyses.Wait()
}

// HandleUpdate is the main message router.
// It dispatches messages to the appropriate session worker for sequential processing.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	b.dispatchUpdate(ctx, update, false)
}

// handleUpdateSync is like HandleUpdate but waits for message processing to complete.
// Used in tests where we need synchronous behavior.
func (b *Bot) handleUpdateSync(ctx context.Context, update tgbotapi.Update) {
	b.dispatchUpdate(ctx, update, true)
}

// dispatchUpdate routes updates to the appropriate session worker.
// If sync is true, it waits for message processing to complete.
func (b *Bot) dispatchUpdate(ctx context.Context, update tgbotapi.Update, sync bool) {
	message := update.Message
	if message == nil || message.From == nil {
		return
	}

	session := b.state.getUserSession(message.From.ID)

	msg := SessionMessage{Type: "text", Ctx: ctx, Message: message}
	switch {
	case len(message.Photo) > 0:
		msg.Type = "photo"
	case message.Document != nil:
		msg.Type = "document"
	}

	log.Info().
		Int64("userId", message.From.ID).
		Str("type", msg.Type).
		Str("text", message.Text).
		Msg("got message")

	if sync {
		session.SendSync(msg)
	} else {
		session.Send(msg)
	}
}

// HandleSessionMessage implements MessageHandler interface.
// This is called by the session worker goroutine for sequential processing.
func (b *Bot) HandleSessionMessage(ctx context.Context, session *UserSession, msg SessionMessage) {
	switch msg.Type {
	case "photo":
		// Telegram sends several sizes, the last one is the largest
		photo := msg.Message.Photo[len(msg.Message.Photo)-1]
		b.handleImage(ctx, session, photo.FileID, int64(photo.FileSize), "image/jpeg")
	case "document":
		b.handleDocument(ctx, session, msg.Message.Document)
	case "text":
		b.handleCommand(session, msg.Message)
	case "analysis_complete":
		b.handleAnalysisComplete(session, msg.Analysis)
	}
}

func isSpreadsheet(doc *tgbotapi.Document) bool {
	return doc.MimeType == xlsxMIMEType || strings.HasSuffix(strings.ToLower(doc.FileName), ".xlsx")
}

func (b *Bot) handleDocument(ctx context.Context, session *UserSession, doc *tgbotapi.Document) {
	switch {
	case isSpreadsheet(doc):
		b.handlePriceListUpload(ctx, session, doc)
	case strings.HasPrefix(doc.MimeType, "image/"):
		b.handleImage(ctx, session, doc.FileID, int64(doc.FileSize), doc.MimeType)
	default:
		session.reply(MsgUnsupportedFile)
	}
}

// handleImage starts a valuation for a photo. The extraction runs in a
// background goroutine and reports back through the session inbox.
func (b *Bot) handleImage(ctx context.Context, session *UserSession, fileID string, fileSize int64, mimeType string) {
	// A finished valuation is discarded by the next photo; a running one is not
	if err := session.controller.Reset(); errors.Is(err, workflow.ErrBusy) {
		session.reply(MsgAnalysisInProgress)
		return
	}

	data, ok := b.download(ctx, session, fileID, fileSize)
	if !ok {
		return
	}
	if detected := http.DetectContentType(data); strings.HasPrefix(detected, "image/") {
		mimeType = detected
	} else {
		log.Warn().Str("detected", detected).Str("declared", mimeType).Msg("uploaded file is not an image")
		session.reply(MsgUnsupportedFile)
		return
	}

	session.reply(MsgAnalyzing)
	session.sendTypingAction()

	analysisCtx, cancel := context.WithTimeout(session.ctx, b.analysisTimeout)
	session.analysisSeq++
	session.cancelAnalysis = cancel
	seq := session.analysisSeq
	img := workflow.Image{Data: data, MIMEType: mimeType, Ref: fileID}

	b.analyses.Add(1)
	go func() {
		defer b.analyses.Done()
		defer cancel()
		result := &AnalysisResult{Seq: seq}
		result.Record, result.Err = session.controller.Submit(analysisCtx, img)
		if result.Err != nil {
			result.Message = workflow.UserMessage(result.Err)
		}
		session.SendSync(SessionMessage{Type: "analysis_complete", Ctx: ctx, Analysis: result})
	}()
}

func (b *Bot) download(ctx context.Context, session *UserSession, fileID string, fileSize int64) ([]byte, bool) {
	limitMB := b.downloader.MaxSize() / (1024 * 1024)
	if fileSize > b.downloader.MaxSize() {
		session.reply(MsgFileTooLarge, limitMB)
		return nil, false
	}

	data, err := b.downloader.DownloadFromTelegramFileID(ctx, b.tg.GetFileDirectURL, fileID)
	if err != nil {
		var tooLarge *FileTooLargeError
		if errors.As(err, &tooLarge) {
			session.reply(MsgFileTooLarge, limitMB)
		} else {
			log.Error().Err(err).Str("fileID", fileID).Msg("failed to download file")
			session.reply(MsgDownloadFailed)
		}
		return nil, false
	}
	return data, true
}

func (b *Bot) handleAnalysisComplete(session *UserSession, result *AnalysisResult) {
	if result == nil {
		return
	}
	if result.Seq == session.analysisSeq {
		session.cancelAnalysis = nil
	}

	switch {
	case result.Err == nil:
		session._reply(formatRecord(*result.Record), false)
	case errors.Is(result.Err, context.Canceled):
		// The user already got a reply from the command that canceled it
		log.Debug().Int64("userId", session.userId).Msg("analysis canceled")
	case errors.Is(result.Err, workflow.ErrBusy), errors.Is(result.Err, workflow.ErrNotIdle):
		session.reply(MsgAnalysisInProgress)
	default:
		session.reply(MsgAnalysisFailed, escapeMarkdown(result.Message))
	}
}

// handleCommand processes bot commands.
// Called from session worker - no locking needed.
func (b *Bot) handleCommand(session *UserSession, message *tgbotapi.Message) {
	command, _ := parseCommand(message.Text)
	switch command {
	case "/start":
		session.reply(MsgStartPrompt)
	case "/yeni":
		if session.cancelAnalysis != nil {
			// The worker goroutine moves the controller back to Idle
			session.cancelAnalysis()
			session.cancelAnalysis = nil
		} else if err := session.controller.Reset(); err != nil {
			log.Warn().Err(err).Int64("userId", session.userId).Msg("failed to reset valuation")
		}
		session.replyAndRemoveCustomKeyboard(MsgReset)
	case "/durum":
		b.handleStatusCommand(session)
	case "/surum":
		session.reply(MsgVersionInfo, Version, BuildTime)
	default:
		session.reply(MsgSendPhotoPrompt)
	}
}

// replyAndRemoveCustomKeyboard sends a text as reply while removing any
// existing custom reply keyboard.
func (s *UserSession) replyAndRemoveCustomKeyboard(text string, a ...any) tgbotapi.Message {
	return s._reply(formatReplyText(text, a...), true)
}

// handlePriceListUpload imports an xlsx price list sent by the admin.
func (b *Bot) handlePriceListUpload(ctx context.Context, session *UserSession, doc *tgbotapi.Document) {
	if session.userId != b.adminID {
		session.reply(MsgAdminOnly)
		return
	}

	data, ok := b.download(ctx, session, doc.FileID, int64(doc.FileSize))
	if !ok {
		return
	}
	session.reply(MsgImportStarted)

	start := time.Now()
	summary, err := b.importer.ImportXLSX(data)
	if err != nil {
		var importErr *pricing.ImportError
		if errors.As(err, &importErr) {
			session.reply(MsgImportRejected, escapeMarkdown(importErr.Error()))
			return
		}
		session.replyWithError(err)
		return
	}

	log.Info().
		Int64("userId", session.userId).
		Str("fileName", doc.FileName).
		Int("entries", summary.Entries).
		Dur("took", time.Since(start)).
		Msg("price list uploaded")

	text := formatReplyText(MsgImportCompleted,
		summary.Entries, summary.Stats.Brands, summary.Stats.MinYear, summary.Stats.MaxYear)
	if summary.Wide {
		text += "\n" + fmt.Sprintf(MsgImportCompletedWide, summary.BlankCells)
	}
	session._reply(text, false)
}

// handleStatusCommand handles /durum. Only the admin user can use it.
func (b *Bot) handleStatusCommand(session *UserSession) {
	if session.userId != b.adminID {
		session.reply(MsgSendPhotoPrompt)
		return
	}

	stats := b.catalog.Table().Stats()
	years := "-"
	if stats.Entries > 0 {
		years = fmt.Sprintf("%d-%d", stats.MinYear, stats.MaxYear)
	}

	lastImport := MsgStatusNoImport
	if b.history != nil {
		imp, err := b.history.LastImport()
		if err != nil {
			session.replyWithError(err)
			return
		}
		if imp != nil {
			lastImport = fmt.Sprintf("%s (%d kayıt)", imp.ImportedAt.Local().Format("2006-01-02 15:04"), imp.EntryCount)
		}
	}

	session.reply(MsgStatus, stats.Entries, stats.Brands, years, lastImport)
}
