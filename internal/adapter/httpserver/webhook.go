package httpserver

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/fairyhunter13/bridgeos/internal/config"
	"github.com/fairyhunter13/bridgeos/internal/domain"
	"github.com/fairyhunter13/bridgeos/internal/usecase"
)

// maxWebhookBody bounds the payload the biller may send.
const maxWebhookBody = 1 << 20

// BillingApplier folds one normalized billing event into stored state.
type BillingApplier interface {
	ApplyEvent(ctx context.Context, ev usecase.BillingEvent) error
}

// Server aggregates webhook handler dependencies.
type Server struct {
	Cfg         config.Config
	Billing     BillingApplier
	Connections domain.ConnectionRepository
	Transports  domain.TransportSet
	DBCheck     func(ctx context.Context) error
}

// NewServer constructs the webhook server with all dependencies wired.
func NewServer(cfg config.Config, billing BillingApplier, conns domain.ConnectionRepository, transports domain.TransportSet, dbCheck func(context.Context) error) *Server {
	return &Server{Cfg: cfg, Billing: billing, Connections: conns, Transports: transports, DBCheck: dbCheck}
}

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() { vld = validator.New() })
	return vld
}

// flexID accepts a manager id serialized as either a JSON number or a
// string; checkout custom fields arrive as strings.
type flexID int64

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("manager_id: %w", err)
	}
	*f = flexID(n)
	return nil
}

type webhookPayload struct {
	Meta struct {
		EventName  string `json:"event_name" validate:"required"`
		CustomData struct {
			ManagerID flexID `json:"manager_id"`
		} `json:"custom_data"`
	} `json:"meta" validate:"required"`
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			RenewsAt  *time.Time `json:"renews_at"`
			EndsAt    *time.Time `json:"ends_at"`
			Cancelled bool       `json:"cancelled"`
			URLs      struct {
				CustomerPortal string `json:"customer_portal"`
			} `json:"urls"`
		} `json:"attributes"`
	} `json:"data"`
}

// WebhookHandler verifies and applies one billing event. The signature
// check gates everything; past it the handler always answers 200 so the
// provider never enters a retry storm, and failures are logged for
// reconciliation instead.
func (s *Server) WebhookHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lg := LoggerFrom(r)
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: read body: %v", domain.ErrInvalidArgument, err), nil)
			return
		}
		if !s.verifySignature(body, r.Header.Get("X-Signature")) {
			lg.Warn("webhook signature rejected")
			writeJSON(w, http.StatusUnauthorized, errorEnvelope{Error: apiError{Code: "UNAUTHENTICATED", Message: "invalid signature"}})
			return
		}

		var p webhookPayload
		if err := json.Unmarshal(body, &p); err != nil {
			lg.Error("webhook payload unparseable", slog.Any("error", err))
			writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
			return
		}
		if err := getValidator().Struct(&p); err != nil {
			lg.Error("webhook payload invalid", slog.Any("error", err))
			writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
			return
		}

		ev := usecase.BillingEvent{
			EventName:  p.Meta.EventName,
			ManagerID:  int64(p.Meta.CustomData.ManagerID),
			ExternalID: p.Data.ID,
			PortalURL:  p.Data.Attributes.URLs.CustomerPortal,
			RenewsAt:   p.Data.Attributes.RenewsAt,
			EndsAt:     p.Data.Attributes.EndsAt,
			Cancelled:  p.Data.Attributes.Cancelled,
		}
		if err := s.Billing.ApplyEvent(r.Context(), ev); err != nil {
			lg.Error("billing event not applied, kept for reconciliation",
				slog.String("event", ev.EventName),
				slog.Int64("manager_id", ev.ManagerID),
				slog.Any("error", err))
			writeJSON(w, http.StatusOK, map[string]string{"status": "logged"})
			return
		}

		s.notify(r.Context(), ev)
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// verifySignature compares the hex HMAC-SHA256 of the raw body against the
// provider's header in constant time. An unset secret rejects everything.
func (s *Server) verifySignature(body []byte, header string) bool {
	if s.Cfg.WebhookSecret == "" || header == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(s.Cfg.WebhookSecret))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(header))
}

// notify tells the manager about the change over chat, best effort. The
// message goes through the lowest active slot, or slot 1 for a manager
// with no connections yet.
func (s *Server) notify(ctx context.Context, ev usecase.BillingEvent) {
	if s.Transports == nil || ev.ManagerID == 0 {
		return
	}
	text := notifyText(ev.EventName)
	if text == "" {
		return
	}
	slot := domain.MinBotSlot
	if conns, err := s.Connections.ListActiveForManager(ctx, ev.ManagerID); err == nil && len(conns) > 0 {
		slot = conns[0].BotSlot
		for _, c := range conns[1:] {
			if c.BotSlot < slot {
				slot = c.BotSlot
			}
		}
	}
	t, ok := s.Transports.ForSlot(slot)
	if !ok {
		return
	}
	dctx, cancel := context.WithTimeout(ctx, s.Cfg.TransportTimeout)
	defer cancel()
	if err := t.SendMessage(dctx, ev.ManagerID, text); err != nil {
		slog.Warn("billing notification not delivered", slog.Int64("manager_id", ev.ManagerID), slog.Any("error", err))
	}
}

func notifyText(event string) string {
	switch event {
	case "subscription_created", "subscription_resumed", "subscription_payment_recovered":
		return "Your subscription is active. Messaging is now unlimited."
	case "subscription_cancelled":
		return "Your subscription is cancelled. You keep unlimited messaging until the end of the paid period."
	case "subscription_expired":
		return "Your subscription has expired. The free message limit applies again."
	case "subscription_payment_failed", "subscription_paused":
		return "There is a problem with your subscription payment. Please check your payment method."
	default:
		return ""
	}
}

// HealthzHandler reports process liveness.
func (s *Server) HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}
}

// ReadyzHandler reports readiness by pinging the database.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.DBCheck != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := s.DBCheck(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "db unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
