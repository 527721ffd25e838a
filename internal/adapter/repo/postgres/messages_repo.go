package postgres

import (
	"fmt"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/bridgeos/internal/domain"
)

// MessageRepo persists the per-connection transcript.
type MessageRepo struct{ Pool PgxPool }

// NewMessageRepo constructs a MessageRepo with the given pool.
func NewMessageRepo(p PgxPool) *MessageRepo { return &MessageRepo{Pool: p} }

// Create inserts a message and returns its id. Messages are persisted
// before delivery is attempted, so a transport failure never loses history.
func (r *MessageRepo) Create(ctx domain.Context, m domain.Message) (int64, error) {
	tracer := otel.Tracer("repo.messages")
	ctx, span := tracer.Start(ctx, "messages.Create")
	defer span.End()
	q := `INSERT INTO messages (connection_id, sender_id, original_text, translated_text)
	      VALUES ($1, $2, $3, NULLIF($4,'')) RETURNING message_id`
	var id int64
	if err := r.Pool.QueryRow(ctx, q, m.ConnectionID, m.SenderID, m.OriginalText, m.TranslatedText).Scan(&id); err != nil {
		return 0, fmt.Errorf("op=message.create: %w", translateErr(err))
	}
	return id, nil
}

// Context returns the last k messages of a connection, oldest first, each
// joined with the sender's UI language.
func (r *MessageRepo) Context(ctx domain.Context, connectionID int64, k int) ([]domain.ContextMessage, error) {
	tracer := otel.Tracer("repo.messages")
	ctx, span := tracer.Start(ctx, "messages.Context")
	defer span.End()
	if k <= 0 {
		return nil, nil
	}
	q := `SELECT m.sender_id, COALESCE(u.ui_language,'English'), m.original_text, m.sent_at
	      FROM (
	          SELECT sender_id, original_text, sent_at, message_id
	          FROM messages WHERE connection_id=$1
	          ORDER BY sent_at DESC, message_id DESC LIMIT $2
	      ) m
	      LEFT JOIN users u ON u.user_id = m.sender_id
	      ORDER BY m.sent_at ASC, m.message_id ASC`
	rows, err := r.Pool.Query(ctx, q, connectionID, k)
	if err != nil {
		return nil, fmt.Errorf("op=message.context: %w", translateErr(err))
	}
	defer rows.Close()
	out := make([]domain.ContextMessage, 0, k)
	for rows.Next() {
		var cm domain.ContextMessage
		if err := rows.Scan(&cm.SenderID, &cm.SenderLanguage, &cm.Text, &cm.SentAt); err != nil {
			return nil, fmt.Errorf("op=message.context_scan: %w", err)
		}
		out = append(out, cm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=message.context_rows: %w", err)
	}
	return out, nil
}

// RecentWindow returns a connection's messages sent after the cutoff,
// oldest first. The daily extraction reads its 24h window through this.
func (r *MessageRepo) RecentWindow(ctx domain.Context, connectionID int64, since time.Time) ([]domain.Message, error) {
	tracer := otel.Tracer("repo.messages")
	ctx, span := tracer.Start(ctx, "messages.RecentWindow")
	defer span.End()
	q := `SELECT message_id, connection_id, sender_id, original_text, COALESCE(translated_text,''), sent_at
	      FROM messages WHERE connection_id=$1 AND sent_at > $2
	      ORDER BY sent_at ASC, message_id ASC`
	rows, err := r.Pool.Query(ctx, q, connectionID, since)
	if err != nil {
		return nil, fmt.Errorf("op=message.recent_window: %w", translateErr(err))
	}
	defer rows.Close()
	var out []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.MessageID, &m.ConnectionID, &m.SenderID, &m.OriginalText, &m.TranslatedText, &m.SentAt); err != nil {
			return nil, fmt.Errorf("op=message.recent_window_scan: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=message.recent_window_rows: %w", err)
	}
	return out, nil
}
