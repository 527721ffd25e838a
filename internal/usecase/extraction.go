package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fairyhunter13/bridgeos/internal/domain"
)

// extractionWindow is the transcript span each daily digest covers.
const extractionWindow = 24 * time.Hour

// ExtractionService turns 24h of conversation into action-item digests:
// on demand for one manager across all of its connections, and as a
// per-connection sweep that one process in the fleet runs daily.
type ExtractionService struct {
	Connections domain.ConnectionRepository
	Messages    domain.MessageRepository
	Users       domain.UserRepository
	Managers    domain.ManagerRepository
	Translator  domain.Translator
	Transports  domain.TransportSet

	IndustryDesc       func(key string) string
	TranslationTimeout time.Duration
	TransportTimeout   time.Duration
}

// RunOnce sweeps every active connection. Failures on one connection never
// stop the sweep; each is logged and skipped.
func (s ExtractionService) RunOnce(ctx domain.Context) error {
	conns, err := s.Connections.ListActive(ctx)
	if err != nil {
		return err
	}
	since := time.Now().UTC().Add(-extractionWindow)
	for _, conn := range conns {
		if err := s.digest(ctx, conn, since); err != nil {
			slog.Error("extraction failed for connection",
				slog.Int64("connection_id", conn.ConnectionID),
				slog.Any("error", err))
		}
	}
	return nil
}

// ForManager merges the last day of conversation across every active
// connection of the manager into a single digest in the manager's UI
// language. The second return is the number of messages in the window; a
// silent day yields ("", 0, nil) and the caller renders the empty-list
// reply.
func (s ExtractionService) ForManager(ctx domain.Context, managerID int64) (string, int, error) {
	conns, err := s.Connections.ListActiveForManager(ctx, managerID)
	if err != nil {
		return "", 0, err
	}
	if len(conns) == 0 {
		return "", 0, fmt.Errorf("op=extraction.for_manager: %w", domain.ErrNotConnected)
	}

	since := time.Now().UTC().Add(-extractionWindow)
	var msgs []domain.Message
	for _, conn := range conns {
		window, err := s.Messages.RecentWindow(ctx, conn.ConnectionID, since)
		if err != nil {
			return "", 0, err
		}
		msgs = append(msgs, window...)
	}
	if len(msgs) == 0 {
		return "", 0, nil
	}

	manager, err := s.Users.Get(ctx, managerID)
	if err != nil {
		return "", 0, err
	}
	tctx, cancel := context.WithTimeout(ctx, s.TranslationTimeout)
	defer cancel()
	items, err := s.Translator.ExtractActionItems(tctx, domain.ExtractionRequest{
		Messages: msgs,
		Industry: s.industryFor(ctx, managerID),
		Language: manager.UILanguage,
	})
	if err != nil {
		return "", 0, err
	}
	return items, len(msgs), nil
}

func (s ExtractionService) industryFor(ctx domain.Context, managerID int64) string {
	m, err := s.Managers.Get(ctx, managerID)
	if err != nil {
		return ""
	}
	if s.IndustryDesc != nil {
		return s.IndustryDesc(m.Industry)
	}
	return m.Industry
}

func (s ExtractionService) digest(ctx domain.Context, conn domain.Connection, since time.Time) error {
	msgs, err := s.Messages.RecentWindow(ctx, conn.ConnectionID, since)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}

	manager, err := s.Users.Get(ctx, conn.ManagerID)
	if err != nil {
		return err
	}

	tctx, cancel := context.WithTimeout(ctx, s.TranslationTimeout)
	defer cancel()
	items, err := s.Translator.ExtractActionItems(tctx, domain.ExtractionRequest{
		Messages: msgs,
		Industry: s.industryFor(ctx, conn.ManagerID),
		Language: manager.UILanguage,
	})
	if err != nil {
		return err
	}
	if items == "" {
		return nil
	}

	t, ok := s.Transports.ForSlot(conn.BotSlot)
	if !ok {
		slog.Error("no transport for slot", slog.Int("bot_slot", conn.BotSlot))
		return nil
	}
	dctx, cancel2 := context.WithTimeout(ctx, s.TransportTimeout)
	defer cancel2()
	return t.SendMessage(dctx, conn.ManagerID, items)
}

// RunDaily blocks, running a sweep every interval until the context is
// cancelled. The first sweep waits one full interval so restarts do not
// double-send digests.
func (s ExtractionService) RunDaily(ctx domain.Context, interval time.Duration) {
	if interval <= 0 {
		interval = extractionWindow
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("extraction service stopping")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				slog.Error("extraction sweep failed", slog.Any("error", err))
			}
		}
	}
}
