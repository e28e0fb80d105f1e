package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	messaging "github.com/evmac/messaging-service/internal/pkg/messaging/application/domain"
	repository "github.com/evmac/messaging-service/internal/pkg/messaging/persistence/repository/port"
)

// PgMessagingRepository implements the messaging repository against
// Postgres. Expected schema (provisioned outside this service):
//
//	conversations(id uuid pk, participant_key text, created_at, updated_at)
//	  with a unique index on participant_key
//	participants(id uuid pk, conversation_id fk, address, address_type, created_at)
//	  with a unique index on (conversation_id, address)
//	messages(id uuid pk, conversation_id fk, provider_type, provider_message_id,
//	  from_address, to_address, body, attachments jsonb, direction, status,
//	  message_timestamp, created_at, updated_at)
//	  with a unique index on (provider_type, provider_message_id)
//	  where direction = 'inbound' and provider_message_id is not null
//
// The participant_key unique index is the synchronization point that keeps
// concurrent resolves from creating duplicate conversations; the partial
// message index backs inbound dedup under webhook redelivery.
type PgMessagingRepository struct {
	pool *pgxpool.Pool // nil when this view is bound to a transaction
	db   querier
}

// querier is the subset of pgx operations shared by *pgxpool.Pool and
// pgx.Tx, letting the same repository code run pooled or transactional.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func NewPgMessagingRepository(pool *pgxpool.Pool) *PgMessagingRepository {
	return &PgMessagingRepository{pool: pool, db: pool}
}

var _ repository.MessagingRepository = (*PgMessagingRepository)(nil)

func (r *PgMessagingRepository) WithinTx(ctx context.Context, fn func(repository.MessagingRepository) error) error {
	if r == nil || r.db == nil {
		return errors.New("PgMessagingRepository: nil db")
	}
	if r.pool == nil {
		// Already inside a transaction; reuse it.
		return fn(r)
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&PgMessagingRepository{db: tx})
	})
}

func (r *PgMessagingRepository) FindConversationByParticipants(ctx context.Context, addresses []string) (*messaging.Conversation, error) {
	key := messaging.ParticipantKey(addresses)
	var c messaging.Conversation
	err := r.db.QueryRow(ctx, `
		SELECT id::text, created_at, updated_at
		FROM conversations
		WHERE participant_key = $1
	`, key).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *PgMessagingRepository) CreateConversationWithParticipants(ctx context.Context, addresses []string) (*messaging.Conversation, error) {
	key := messaging.ParticipantKey(addresses)
	if key == "" {
		return nil, fmt.Errorf("%w: participant addresses are required", messaging.ErrValidation)
	}

	var conv *messaging.Conversation
	err := r.WithinTx(ctx, func(txRepo repository.MessagingRepository) error {
		tr := txRepo.(*PgMessagingRepository)

		var c messaging.Conversation
		err := tr.db.QueryRow(ctx, `
			INSERT INTO conversations (participant_key)
			VALUES ($1)
			ON CONFLICT (participant_key) DO NOTHING
			RETURNING id::text, created_at, updated_at
		`, key).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			// A concurrent caller created the conversation first; return the
			// winner's row. Its participants are already in place.
			err = tr.db.QueryRow(ctx, `
				SELECT id::text, created_at, updated_at
				FROM conversations
				WHERE participant_key = $1
			`, key).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
			if err != nil {
				return err
			}
			conv = &c
			return nil
		}
		if err != nil {
			return err
		}

		for _, address := range addresses {
			_, err := tr.db.Exec(ctx, `
				INSERT INTO participants (conversation_id, address, address_type)
				VALUES ($1::uuid, $2, $3)
				ON CONFLICT (conversation_id, address) DO NOTHING
			`, c.ID, address, string(messaging.AddressKindOf(address)))
			if err != nil {
				return err
			}
		}

		conv = &c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return conv, nil
}

func (r *PgMessagingRepository) GetConversation(ctx context.Context, id string) (*messaging.Conversation, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	var c messaging.Conversation
	err := r.db.QueryRow(ctx, `
		SELECT id::text, created_at, updated_at
		FROM conversations
		WHERE id = $1::uuid
	`, id).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *PgMessagingRepository) GetConversationSummary(ctx context.Context, id string) (*repository.ConversationSummary, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	var s repository.ConversationSummary
	err := r.db.QueryRow(ctx, `
		SELECT c.id::text, c.created_at, c.updated_at,
		       array_agg(DISTINCT p.address),
		       count(DISTINCT m.id),
		       max(m.message_timestamp)
		FROM conversations c
		JOIN participants p ON p.conversation_id = c.id
		LEFT JOIN messages m ON m.conversation_id = c.id
		WHERE c.id = $1::uuid
		GROUP BY c.id
	`, id).Scan(
		&s.Conversation.ID, &s.Conversation.CreatedAt, &s.Conversation.UpdatedAt,
		&s.Participants, &s.MessageCount, &s.LastMessageTimestamp,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *PgMessagingRepository) ListConversations(ctx context.Context, limit, offset int, participantAddress string) ([]repository.ConversationSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.db.Query(ctx, `
		SELECT c.id::text, c.created_at, c.updated_at,
		       array_agg(DISTINCT p.address),
		       count(DISTINCT m.id),
		       max(m.message_timestamp)
		FROM conversations c
		JOIN participants p ON p.conversation_id = c.id
		LEFT JOIN messages m ON m.conversation_id = c.id
		WHERE $3 = '' OR c.id IN (
			SELECT conversation_id FROM participants WHERE address = $3
		)
		GROUP BY c.id
		ORDER BY c.created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset, participantAddress)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []repository.ConversationSummary
	for rows.Next() {
		var s repository.ConversationSummary
		if err := rows.Scan(
			&s.Conversation.ID, &s.Conversation.CreatedAt, &s.Conversation.UpdatedAt,
			&s.Participants, &s.MessageCount, &s.LastMessageTimestamp,
		); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return summaries, nil
}

func (r *PgMessagingRepository) FindMessageByProviderID(ctx context.Context, channel messaging.Channel, providerMessageID string) (*messaging.Message, error) {
	if providerMessageID == "" {
		return nil, nil
	}
	row := r.db.QueryRow(ctx, messageSelect+`
		WHERE provider_type = $1 AND provider_message_id = $2 AND direction = 'inbound'
	`, string(channel), providerMessageID)
	m, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *PgMessagingRepository) SaveMessage(ctx context.Context, m messaging.Message) (*messaging.Message, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	attachments, err := json.Marshal(m.Attachments)
	if err != nil {
		return nil, err
	}

	err = r.db.QueryRow(ctx, `
		INSERT INTO messages (
			id, conversation_id, provider_type, provider_message_id,
			from_address, to_address, body, attachments, direction, status,
			message_timestamp
		) VALUES ($1::uuid, $2::uuid, $3, $4, $5, $6, $7, $8::jsonb, $9, $10, $11)
		ON CONFLICT (provider_type, provider_message_id)
			WHERE direction = 'inbound' AND provider_message_id IS NOT NULL
			DO NOTHING
		RETURNING id::text, created_at, updated_at
	`, m.ID, m.ConversationID, string(m.Channel), m.ProviderMessageID,
		m.FromAddress, m.ToAddress, m.Body, attachments, string(m.Direction),
		string(m.Status), m.MessageTimestamp,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// Lost a redelivery race; the already-stored message wins.
		if m.Direction == messaging.DirectionInbound && m.ProviderMessageID != nil {
			return r.FindMessageByProviderID(ctx, m.Channel, *m.ProviderMessageID)
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *PgMessagingRepository) ListMessagesByConversation(ctx context.Context, conversationID string, filter repository.MessageFilter) ([]messaging.Message, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	direction := ""
	if filter.Direction != nil {
		direction = string(*filter.Direction)
	}

	rows, err := r.db.Query(ctx, messageSelect+`
		WHERE conversation_id = $1::uuid AND ($4 = '' OR direction = $4)
		ORDER BY message_timestamp ASC
		LIMIT $2 OFFSET $3
	`, conversationID, limit, offset, direction)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []messaging.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *m)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return msgs, nil
}

func (r *PgMessagingRepository) UpdateMessageStatus(ctx context.Context, messageID string, status messaging.Status) (*messaging.Message, error) {
	var updated *messaging.Message
	err := r.WithinTx(ctx, func(txRepo repository.MessagingRepository) error {
		tr := txRepo.(*PgMessagingRepository)

		var current messaging.Status
		err := tr.db.QueryRow(ctx, `
			SELECT status FROM messages WHERE id = $1::uuid FOR UPDATE
		`, messageID).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: message %s", messaging.ErrNotFound, messageID)
		}
		if err != nil {
			return err
		}
		if !current.CanTransitionTo(status) {
			return fmt.Errorf("%w: cannot transition status %s -> %s", messaging.ErrValidation, current, status)
		}

		row := tr.db.QueryRow(ctx, `
			UPDATE messages SET status = $2, updated_at = NOW()
			WHERE id = $1::uuid
			RETURNING `+messageColumns, messageID, string(status))
		updated, err = scanMessage(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

const messageColumns = `id::text, conversation_id::text, provider_type,
	provider_message_id, from_address, to_address, body, attachments,
	direction, status, message_timestamp, created_at, updated_at`

const messageSelect = `SELECT ` + messageColumns + ` FROM messages`

func scanMessage(row pgx.Row) (*messaging.Message, error) {
	var (
		m           messaging.Message
		channel     string
		direction   string
		status      string
		attachments []byte
	)
	err := row.Scan(
		&m.ID, &m.ConversationID, &channel, &m.ProviderMessageID,
		&m.FromAddress, &m.ToAddress, &m.Body, &attachments,
		&direction, &status, &m.MessageTimestamp, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.Channel = messaging.Channel(channel)
	m.Direction = messaging.Direction(direction)
	m.Status = messaging.Status(status)
	if len(attachments) > 0 {
		if err := json.Unmarshal(attachments, &m.Attachments); err != nil {
			return nil, err
		}
	}
	if m.Attachments == nil {
		m.Attachments = []string{}
	}
	return &m, nil
}
