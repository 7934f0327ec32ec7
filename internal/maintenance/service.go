package maintenance

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/raine/kasko-bot/internal/pricing"
	"github.com/rs/zerolog/log"
)

const (
	// PruneInterval is how often the vision cache is pruned.
	PruneInterval = 24 * time.Hour

	// VisionCacheMaxAge is how long extraction results are kept.
	VisionCacheMaxAge = 30 * 24 * time.Hour // 30 days

	// StartupDelay lets the bot finish starting before the first run.
	StartupDelay = 5 * time.Second
)

const msgEmptyTable = "⚠️ Kasko değer listesi yüklü değil, tüm değerlemeler yapay zeka tahmini olacak. Listeyi .xlsx olarak gönderebilirsin."

// CachePruner removes stale extraction results.
type CachePruner interface {
	PruneVisionCache(maxAge time.Duration) (int64, error)
}

// BotSender abstracts the Telegram bot API for sending messages.
type BotSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Service runs periodic housekeeping: it prunes the vision cache and reminds
// the admin while no reference table is loaded.
type Service struct {
	pruner  CachePruner
	catalog *pricing.Catalog
	bot     BotSender // May be nil
	adminID int64

	interval     time.Duration
	maxAge       time.Duration
	startupDelay time.Duration
}

// NewService creates a new maintenance service.
func NewService(pruner CachePruner, catalog *pricing.Catalog, bot BotSender, adminID int64) *Service {
	return &Service{
		pruner:       pruner,
		catalog:      catalog,
		bot:          bot,
		adminID:      adminID,
		interval:     PruneInterval,
		maxAge:       VisionCacheMaxAge,
		startupDelay: StartupDelay,
	}
}

// Run starts the maintenance loop. It blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) {
	log.Info().Dur("interval", s.interval).Msg("starting maintenance service")

	select {
	case <-ctx.Done():
		return
	case <-time.After(s.startupDelay):
	}
	s.runOnce()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("maintenance service stopped")
			return
		case <-ticker.C:
			s.runOnce()
		}
	}
}

func (s *Service) runOnce() {
	s.pruneVisionCache()
	s.checkReferenceTable()
}

// pruneVisionCache removes old cache rows to prevent database bloat.
func (s *Service) pruneVisionCache() {
	count, err := s.pruner.PruneVisionCache(s.maxAge)
	if err != nil {
		log.Error().Err(err).Msg("failed to prune vision cache")
		return
	}
	if count > 0 {
		log.Info().Int64("pruned", count).Msg("pruned old vision cache entries")
	}
}

func (s *Service) checkReferenceTable() {
	if s.catalog == nil || s.catalog.Table().Len() > 0 {
		return
	}
	log.Warn().Msg("reference price table is empty")
	if s.bot == nil || s.adminID == 0 {
		return
	}
	if _, err := s.bot.Send(tgbotapi.NewMessage(s.adminID, msgEmptyTable)); err != nil {
		log.Error().Err(err).Int64("adminId", s.adminID).Msg("failed to notify admin")
	}
}
