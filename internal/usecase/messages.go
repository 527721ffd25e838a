package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fairyhunter13/bridgeos/internal/adapter/observability"
	"github.com/fairyhunter13/bridgeos/internal/domain"
)

// MessageGate decides whether a manager-side message consumes quota.
type MessageGate struct {
	FreeLimit     int
	EnforceLimits bool
	IsTestUser    func(int64) bool
}

// RelayResult tells the caller what happened beyond plain success.
type RelayResult struct {
	Connection     domain.Connection
	RecipientID    int64
	TranslatedText string
	// LastFree is set when this message consumed the final unit of free
	// quota, so the sender can be warned.
	LastFree bool
	// Delivered is false when the message was persisted but the outbound
	// send failed. History wins over delivery.
	Delivered bool
}

// MessageService runs the relay pipeline: locate, gate, contextualize,
// translate, persist, deliver. The order is the contract; nothing is
// written before the gate passes and nothing is delivered before it is
// written.
type MessageService struct {
	Connections   domain.ConnectionRepository
	Users         domain.UserRepository
	Managers      domain.ManagerRepository
	Messages      domain.MessageRepository
	Subscriptions domain.SubscriptionRepository
	Usage         domain.UsageRepository
	Translator    domain.Translator
	Transports    domain.TransportSet

	Gate               MessageGate
	ContextSize        int
	IndustryDesc       func(key string) string
	TranslationTimeout time.Duration
	TransportTimeout   time.Duration
}

// Relay processes one inbound chat message from either side of a
// connection.
func (s MessageService) Relay(ctx domain.Context, senderID int64, role domain.Role, botSlot int, text string) (RelayResult, error) {
	if text == "" {
		return RelayResult{}, fmt.Errorf("%w: empty message", domain.ErrInvalidArgument)
	}

	conn, err := s.locate(ctx, senderID, role, botSlot)
	if err != nil {
		observability.MessagesBlockedTotal.WithLabelValues("not_connected").Inc()
		return RelayResult{}, err
	}

	res := RelayResult{Connection: conn}
	if role == domain.RoleManager {
		res.LastFree, err = s.gate(ctx, senderID)
		if err != nil {
			observability.MessagesBlockedTotal.WithLabelValues("limit").Inc()
			return RelayResult{}, err
		}
	}

	sender, err := s.Users.Get(ctx, senderID)
	if err != nil {
		return RelayResult{}, err
	}
	recipientID := conn.WorkerID
	if role == domain.RoleWorker {
		recipientID = conn.ManagerID
	}
	res.RecipientID = recipientID
	recipient, err := s.Users.Get(ctx, recipientID)
	if err != nil {
		return RelayResult{}, err
	}

	translated, err := s.translate(ctx, conn, sender, recipient, text)
	if err != nil {
		return RelayResult{}, err
	}
	res.TranslatedText = translated

	if _, err := s.Messages.Create(ctx, domain.Message{
		ConnectionID:   conn.ConnectionID,
		SenderID:       senderID,
		OriginalText:   text,
		TranslatedText: translated,
	}); err != nil {
		return RelayResult{}, err
	}
	observability.MessagesRelayedTotal.WithLabelValues(string(role)).Inc()

	res.Delivered = s.deliver(ctx, conn.BotSlot, recipientID, translated)
	return res, nil
}

func (s MessageService) locate(ctx domain.Context, senderID int64, role domain.Role, botSlot int) (domain.Connection, error) {
	switch role {
	case domain.RoleManager:
		return s.Connections.ActiveForManagerSlot(ctx, senderID, botSlot)
	case domain.RoleWorker:
		conn, err := s.Connections.ActiveForWorker(ctx, senderID)
		if err != nil {
			return domain.Connection{}, err
		}
		// A worker talking to the wrong bot is connected, just not here.
		if conn.BotSlot != botSlot {
			return domain.Connection{}, fmt.Errorf("op=message.locate: %w", domain.ErrWrongSlot)
		}
		return conn, nil
	default:
		return domain.Connection{}, fmt.Errorf("op=message.locate: %w", domain.ErrForbidden)
	}
}

// gate consumes quota for a non-entitled manager. Returns whether this was
// the last free message.
func (s MessageService) gate(ctx domain.Context, managerID int64) (bool, error) {
	if !s.Gate.EnforceLimits {
		return false, nil
	}
	if s.Gate.IsTestUser != nil && s.Gate.IsTestUser(managerID) {
		return false, nil
	}
	sub, err := s.Subscriptions.GetByManager(ctx, managerID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return false, err
	}
	if sub.Entitled(time.Now().UTC()) {
		return false, nil
	}
	_, nowBlocked, err := s.Usage.IncrementBelow(ctx, managerID, s.Gate.FreeLimit)
	if err != nil {
		return false, err
	}
	return nowBlocked, nil
}

func (s MessageService) translate(ctx domain.Context, conn domain.Connection, sender, recipient domain.User, text string) (string, error) {
	if sender.UILanguage == recipient.UILanguage {
		return text, nil
	}
	industry := ""
	if m, err := s.Managers.Get(ctx, conn.ManagerID); err == nil {
		industry = m.Industry
		if s.IndustryDesc != nil {
			industry = s.IndustryDesc(m.Industry)
		}
	}
	msgCtx, err := s.Messages.Context(ctx, conn.ConnectionID, s.ContextSize)
	if err != nil {
		// Context is an aid, not a requirement.
		slog.Warn("translation context unavailable", slog.Int64("connection_id", conn.ConnectionID), slog.Any("error", err))
	}
	tctx, cancel := context.WithTimeout(ctx, s.TranslationTimeout)
	defer cancel()
	return s.Translator.Translate(tctx, domain.TranslationRequest{
		Text:         text,
		FromLanguage: sender.UILanguage,
		ToLanguage:   recipient.UILanguage,
		TargetGender: recipient.Gender,
		Industry:     industry,
		Context:      msgCtx,
	})
}

// deliver sends the translated text to the recipient through the
// connection's bot. The message is already persisted; a failure here is
// logged and counted, never bubbled.
func (s MessageService) deliver(ctx domain.Context, slot int, recipientID int64, text string) bool {
	t, ok := s.Transports.ForSlot(slot)
	if !ok {
		slog.Error("no transport for slot", slog.Int("bot_slot", slot))
		observability.DeliveryFailuresTotal.Inc()
		return false
	}
	dctx, cancel := context.WithTimeout(ctx, s.TransportTimeout)
	defer cancel()
	if err := t.SendMessage(dctx, recipientID, text); err != nil {
		slog.Error("delivery failed after persist",
			slog.Int("bot_slot", slot),
			slog.Int64("recipient_id", recipientID),
			slog.Any("error", err))
		observability.DeliveryFailuresTotal.Inc()
		return false
	}
	return true
}
