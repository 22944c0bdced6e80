package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"discord-archive-bot/internal/domain"
	"discord-archive-bot/internal/infra/metrics"
)

// querier покрывает операции pgxpool.Pool, которыми пользуется адаптер.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// Postgres реализует репозитории архива на основе pgxpool.
type Postgres struct {
	pool querier
}

var (
	_ domain.UserRepo      = (*Postgres)(nil)
	_ domain.MessageRepo   = (*Postgres)(nil)
	_ domain.ChannelRepo   = (*Postgres)(nil)
	_ domain.SyncStateRepo = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

func (p *Postgres) connCtxWithParent(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return p.connCtx()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// ---- пользователи ----

// UpsertUser перезаписывает зеркальную запись пользователя (last-write-wins).
func (p *Postgres) UpsertUser(ctx context.Context, user domain.User) (domain.User, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO users (id, username, discriminator, global_name, avatar, bot, system)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET username = EXCLUDED.username, discriminator = EXCLUDED.discriminator, global_name = EXCLUDED.global_name, avatar = EXCLUDED.avatar, bot = EXCLUDED.bot, system = EXCLUDED.system
RETURNING id, username, discriminator, global_name, avatar, bot, system
`, user.ID, user.Username, user.Discriminator, user.GlobalName, user.Avatar, user.Bot, user.System).
		Scan(&user.ID, &user.Username, &user.Discriminator, &user.GlobalName, &user.Avatar, &user.Bot, &user.System)
	metrics.ObserveNetworkRequest("postgres", "users_upsert", "users", start, err)
	if err != nil {
		return domain.User{}, fmt.Errorf("upsert пользователя: %w", err)
	}
	return user, nil
}

// GetUser возвращает пользователя по platform id.
func (p *Postgres) GetUser(ctx context.Context, id int64) (domain.User, bool, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var user domain.User
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT id, username, discriminator, global_name, avatar, bot, system FROM users WHERE id=$1
`, id).Scan(&user.ID, &user.Username, &user.Discriminator, &user.GlobalName, &user.Avatar, &user.Bot, &user.System)
	metrics.ObserveNetworkRequest("postgres", "users_get", "users", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, false, nil
	}
	if err != nil {
		return domain.User{}, false, err
	}
	return user, true, nil
}

// PurgeUser удаляет пользователя; сообщения уходят каскадом.
func (p *Postgres) PurgeUser(ctx context.Context, id int64) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `DELETE FROM users WHERE id=$1`, id)
	metrics.ObserveNetworkRequest("postgres", "users_purge", "users", start, err)
	return err
}

// ---- сообщения ----

const messageColumns = `id, channel_id, author_id, content, ts, edited_ts, msg_type, pinned, tts, mention_everyone, webhook_id, flags, mentions, attachments, embeds, reactions, message_reference, referenced_message`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (domain.Message, error) {
	var (
		msg       domain.Message
		authorID  sql.NullInt64
		content   sql.NullString
		editedTS  sql.NullTime
		msgType   string
		webhookID sql.NullInt64
		flags     sql.NullInt32
		mentions  []byte
		atts      []byte
		embeds    []byte
		reactions []byte
		reference []byte
		refMsg    []byte
	)
	err := row.Scan(&msg.ID, &msg.ChannelID, &authorID, &content, &msg.Timestamp, &editedTS,
		&msgType, &msg.Pinned, &msg.TTS, &msg.MentionEveryone, &webhookID, &flags,
		&mentions, &atts, &embeds, &reactions, &reference, &refMsg)
	if err != nil {
		return domain.Message{}, err
	}
	msg.Type = domain.MessageType(msgType)
	if authorID.Valid {
		id := authorID.Int64
		msg.AuthorID = &id
	}
	if content.Valid {
		text := content.String
		msg.Content = &text
	}
	if editedTS.Valid {
		ts := editedTS.Time
		msg.EditedTimestamp = &ts
	}
	if webhookID.Valid {
		id := webhookID.Int64
		msg.WebhookID = &id
	}
	if flags.Valid {
		f := int(flags.Int32)
		msg.Flags = &f
	}
	if err := json.Unmarshal(mentions, &msg.Mentions); err != nil {
		return domain.Message{}, fmt.Errorf("mentions сообщения %d: %w", msg.ID, err)
	}
	if err := json.Unmarshal(atts, &msg.Attachments); err != nil {
		return domain.Message{}, fmt.Errorf("attachments сообщения %d: %w", msg.ID, err)
	}
	if err := json.Unmarshal(embeds, &msg.Embeds); err != nil {
		return domain.Message{}, fmt.Errorf("embeds сообщения %d: %w", msg.ID, err)
	}
	if err := json.Unmarshal(reactions, &msg.Reactions); err != nil {
		return domain.Message{}, fmt.Errorf("reactions сообщения %d: %w", msg.ID, err)
	}
	if len(reference) > 0 {
		var ref domain.MessageReference
		if err := json.Unmarshal(reference, &ref); err != nil {
			return domain.Message{}, fmt.Errorf("reference сообщения %d: %w", msg.ID, err)
		}
		msg.Reference = &ref
	}
	if len(refMsg) > 0 {
		msg.ReferencedMessage = json.RawMessage(refMsg)
	}
	return msg, nil
}

func marshalList(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(data) == "null" {
		return []byte("[]"), nil
	}
	return data, nil
}

type messageArgs struct {
	mentions  []byte
	atts      []byte
	embeds    []byte
	reactions []byte
	reference []byte
	refMsg    []byte
}

func encodeMessage(msg domain.Message) (messageArgs, error) {
	var (
		args messageArgs
		err  error
	)
	if args.mentions, err = marshalList(msg.Mentions); err != nil {
		return args, fmt.Errorf("mentions: %w", err)
	}
	if args.atts, err = marshalList(msg.Attachments); err != nil {
		return args, fmt.Errorf("attachments: %w", err)
	}
	if args.embeds, err = marshalList(msg.Embeds); err != nil {
		return args, fmt.Errorf("embeds: %w", err)
	}
	if args.reactions, err = marshalList(msg.Reactions); err != nil {
		return args, fmt.Errorf("reactions: %w", err)
	}
	if msg.Reference != nil {
		if args.reference, err = json.Marshal(msg.Reference); err != nil {
			return args, fmt.Errorf("reference: %w", err)
		}
	}
	if len(msg.ReferencedMessage) > 0 {
		args.refMsg = msg.ReferencedMessage
	}
	return args, nil
}

const insertMessageSQL = `
INSERT INTO messages (` + messageColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
`

func insertArgs(msg domain.Message, enc messageArgs) []any {
	msgType := msg.Type
	if msgType == "" {
		msgType = domain.MessageTypeDefault
	}
	return []any{
		msg.ID, msg.ChannelID, msg.AuthorID, msg.Content, msg.Timestamp, msg.EditedTimestamp,
		string(msgType), msg.Pinned, msg.TTS, msg.MentionEveryone, msg.WebhookID, msg.Flags,
		enc.mentions, enc.atts, enc.embeds, enc.reactions, enc.reference, enc.refMsg,
	}
}

// GetMessage возвращает сообщение по platform id.
func (p *Postgres) GetMessage(ctx context.Context, id int64) (domain.Message, bool, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	row := p.pool.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, id)
	msg, err := scanMessage(row)
	metrics.ObserveNetworkRequest("postgres", "messages_get", "messages", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Message{}, false, nil
	}
	if err != nil {
		return domain.Message{}, false, err
	}
	return msg, true, nil
}

// CreateMessage сохраняет новую запись сообщения.
func (p *Postgres) CreateMessage(ctx context.Context, msg domain.Message) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	enc, err := encodeMessage(msg)
	if err != nil {
		return fmt.Errorf("сериализация сообщения %d: %w", msg.ID, err)
	}
	start := time.Now()
	_, err = p.pool.Exec(ctx, insertMessageSQL, insertArgs(msg, enc)...)
	metrics.ObserveNetworkRequest("postgres", "messages_insert", "messages", start, err)
	if err != nil {
		return fmt.Errorf("вставка сообщения %d: %w", msg.ID, err)
	}
	return nil
}

// applyUpdate накладывает частичное обновление на запись.
// Изменение content всегда помечает сообщение отредактированным: берётся
// присланная метка, а при её отсутствии — текущее время.
func applyUpdate(msg *domain.Message, update domain.MessageUpdate, now time.Time) {
	if update.Content != nil {
		msg.Content = update.Content
		if update.EditedTimestamp != nil {
			msg.EditedTimestamp = update.EditedTimestamp
		} else {
			ts := now
			msg.EditedTimestamp = &ts
		}
	} else if update.EditedTimestamp != nil {
		msg.EditedTimestamp = update.EditedTimestamp
	}
	if update.Pinned != nil {
		msg.Pinned = *update.Pinned
	}
	if update.Mentions != nil {
		msg.Mentions = *update.Mentions
	}
	if update.Attachments != nil {
		msg.Attachments = *update.Attachments
	}
	if update.Embeds != nil {
		msg.Embeds = *update.Embeds
	}
	if update.Reactions != nil {
		msg.Reactions = *update.Reactions
	}
}

func updateMessageTx(ctx context.Context, tx pgx.Tx, id int64, authorID *int64, update domain.MessageUpdate) (*domain.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id=$1`
	args := []any{id}
	if authorID != nil {
		query += ` AND author_id=$2`
		args = append(args, *authorID)
	}
	query += ` FOR UPDATE`

	start := time.Now()
	msg, err := scanMessage(tx.QueryRow(ctx, query, args...))
	metrics.ObserveNetworkRequest("postgres", "messages_get_for_update", "messages", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	applyUpdate(&msg, update, time.Now().UTC())

	enc, err := encodeMessage(msg)
	if err != nil {
		return nil, fmt.Errorf("сериализация сообщения %d: %w", msg.ID, err)
	}
	start = time.Now()
	_, err = tx.Exec(ctx, `
UPDATE messages SET content=$2, edited_ts=$3, pinned=$4, mentions=$5, attachments=$6, embeds=$7, reactions=$8
WHERE id=$1
`, msg.ID, msg.Content, msg.EditedTimestamp, msg.Pinned, enc.mentions, enc.atts, enc.embeds, enc.reactions)
	metrics.ObserveNetworkRequest("postgres", "messages_update", "messages", start, err)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// UpdateMessage обновляет сообщение при совпадении id и author_id.
// Несовпадение — обычный отрицательный результат (nil, nil), не ошибка.
func (p *Postgres) UpdateMessage(ctx context.Context, id, authorID int64, update domain.MessageUpdate) (*domain.Message, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	// живое редактирование всегда штампуется временем наблюдения
	update.EditedTimestamp = nil

	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	msg, err := updateMessageTx(ctx, tx, id, &authorID, update)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, nil
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return msg, nil
}

// DeleteMessage физически удаляет сообщение при совпадении id и author_id.
func (p *Postgres) DeleteMessage(ctx context.Context, id, authorID int64) (bool, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	res, err := p.pool.Exec(ctx, `DELETE FROM messages WHERE id=$1 AND author_id=$2`, id, authorID)
	metrics.ObserveNetworkRequest("postgres", "messages_delete", "messages", start, err)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() > 0, nil
}

// BatchCreateMessages вставляет пачку сообщений одной транзакцией:
// либо все строки, либо ни одной.
func (p *Postgres) BatchCreateMessages(ctx context.Context, msgs []domain.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	metrics.ObserveNetworkRequest("postgres", "begin_tx", "messages", start, err)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, msg := range msgs {
		enc, err := encodeMessage(msg)
		if err != nil {
			return fmt.Errorf("сериализация сообщения %d: %w", msg.ID, err)
		}
		start = time.Now()
		_, err = tx.Exec(ctx, insertMessageSQL, insertArgs(msg, enc)...)
		metrics.ObserveNetworkRequest("postgres", "messages_batch_insert", "messages", start, err)
		if err != nil {
			return fmt.Errorf("вставка сообщения %d: %w", msg.ID, err)
		}
	}

	start = time.Now()
	err = tx.Commit(ctx)
	metrics.ObserveNetworkRequest("postgres", "commit", "messages", start, err)
	return err
}

// BatchUpdateMessages применяет пачку частичных обновлений одной транзакцией.
func (p *Postgres) BatchUpdateMessages(ctx context.Context, changes []domain.MessageChange) error {
	if len(changes) == 0 {
		return nil
	}
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	metrics.ObserveNetworkRequest("postgres", "begin_tx", "messages", start, err)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, change := range changes {
		if _, err := updateMessageTx(ctx, tx, change.ID, nil, change.Update); err != nil {
			return fmt.Errorf("обновление сообщения %d: %w", change.ID, err)
		}
	}

	start = time.Now()
	err = tx.Commit(ctx)
	metrics.ObserveNetworkRequest("postgres", "commit", "messages", start, err)
	return err
}

// GetMessages возвращает карту id -> сообщение, опуская отсутствующие id.
func (p *Postgres) GetMessages(ctx context.Context, ids []int64) (map[int64]domain.Message, error) {
	result := make(map[int64]domain.Message, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = ANY($1)`, ids)
	metrics.ObserveNetworkRequest("postgres", "messages_get_many", "messages", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		result[msg.ID] = msg
	}
	return result, rows.Err()
}

// UpdateReactions перезаписывает агрегат реакций сообщения целиком.
func (p *Postgres) UpdateReactions(ctx context.Context, id int64, reactions []domain.ReactionEntry) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	payload, err := marshalList(reactions)
	if err != nil {
		return fmt.Errorf("сериализация реакций: %w", err)
	}
	start := time.Now()
	_, err = p.pool.Exec(ctx, `UPDATE messages SET reactions=$2 WHERE id=$1`, id, payload)
	metrics.ObserveNetworkRequest("postgres", "messages_update_reactions", "messages", start, err)
	return err
}

// FilterMessages выполняет основной запрос выборки. Пост-фильтр по эмодзи
// и сортировка по числу реакций выполняются слоем поиска.
func (p *Postgres) FilterMessages(ctx context.Context, criteria domain.FilterCriteria) ([]domain.Message, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var (
		conditions []string
		args       []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(criteria.ChannelIDs) > 0 {
		conditions = append(conditions, `channel_id = ANY(`+arg(criteria.ChannelIDs)+`)`)
	}
	if len(criteria.AuthorIDs) > 0 {
		conditions = append(conditions, `author_id = ANY(`+arg(criteria.AuthorIDs)+`)`)
	}
	if criteria.From != nil {
		conditions = append(conditions, `ts >= `+arg(*criteria.From))
	}
	if criteria.To != nil {
		conditions = append(conditions, `ts <= `+arg(*criteria.To))
	}
	if criteria.HasAttachments != nil {
		if *criteria.HasAttachments {
			conditions = append(conditions, `jsonb_array_length(attachments) > 0`)
		} else {
			conditions = append(conditions, `jsonb_array_length(attachments) = 0`)
		}
	}
	if criteria.AttachmentName != "" {
		conditions = append(conditions,
			`EXISTS (SELECT 1 FROM jsonb_array_elements(attachments) AS att WHERE att->>'filename' ILIKE '%' || `+arg(criteria.AttachmentName)+` || '%')`)
	}

	query := `SELECT ` + messageColumns + ` FROM messages`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, ` AND `)
	}
	if criteria.Sort == domain.SortDescending {
		query += ` ORDER BY ts DESC`
	} else {
		query += ` ORDER BY ts ASC`
	}
	if criteria.Limit > 0 {
		query += ` LIMIT ` + arg(criteria.Limit)
	}

	start := time.Now()
	rows, err := p.pool.Query(ctx, query, args...)
	metrics.ObserveNetworkRequest("postgres", "messages_filter", "messages", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// LatestMessageID возвращает id новейшего сохранённого сообщения канала.
func (p *Postgres) LatestMessageID(ctx context.Context, channelID int64) (int64, bool, error) {
	return p.boundaryMessageID(ctx, channelID, "DESC", "messages_latest_id")
}

// OldestMessageID возвращает id старейшего сохранённого сообщения канала.
func (p *Postgres) OldestMessageID(ctx context.Context, channelID int64) (int64, bool, error) {
	return p.boundaryMessageID(ctx, channelID, "ASC", "messages_oldest_id")
}

func (p *Postgres) boundaryMessageID(ctx context.Context, channelID int64, order, op string) (int64, bool, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var id int64
	start := time.Now()
	err := p.pool.QueryRow(ctx,
		`SELECT id FROM messages WHERE channel_id=$1 ORDER BY id `+order+` LIMIT 1`, channelID).Scan(&id)
	metrics.ObserveNetworkRequest("postgres", op, "messages", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// ---- каналы ----

// UpsertChannel пополняет измерение каналов.
func (p *Postgres) UpsertChannel(ctx context.Context, channel domain.Channel) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO channels (id, guild_id, name)
VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET guild_id = EXCLUDED.guild_id, name = CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE channels.name END
`, channel.ID, channel.GuildID, channel.Name)
	metrics.ObserveNetworkRequest("postgres", "channels_upsert", "channels", start, err)
	return err
}

// ListChannels возвращает все наблюдавшиеся каналы.
func (p *Postgres) ListChannels(ctx context.Context) ([]domain.Channel, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `SELECT id, guild_id, name FROM channels ORDER BY id`)
	metrics.ObserveNetworkRequest("postgres", "channels_list", "channels", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var channels []domain.Channel
	for rows.Next() {
		var ch domain.Channel
		if err := rows.Scan(&ch.ID, &ch.GuildID, &ch.Name); err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	return channels, rows.Err()
}

// ---- состояние сверки ----

// GetSyncState возвращает курсоры сверки канала.
func (p *Postgres) GetSyncState(ctx context.Context, channelID int64) (domain.SyncState, bool, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var (
		state    domain.SyncState
		last     sql.NullInt64
		oldest   sql.NullInt64
		syncedAt sql.NullTime
	)
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT channel_id, last_synced_message_id, oldest_synced_message_id, last_sync_at, initial_backfill_complete
FROM sync_state WHERE channel_id=$1
`, channelID).Scan(&state.ChannelID, &last, &oldest, &syncedAt, &state.InitialBackfillComplete)
	metrics.ObserveNetworkRequest("postgres", "sync_state_get", "sync_state", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.SyncState{}, false, nil
	}
	if err != nil {
		return domain.SyncState{}, false, err
	}
	if last.Valid {
		id := last.Int64
		state.LastSyncedMessageID = &id
	}
	if oldest.Valid {
		id := oldest.Int64
		state.OldestSyncedMessageID = &id
	}
	if syncedAt.Valid {
		state.LastSyncAt = syncedAt.Time
	}
	return state, true, nil
}

// UpsertSyncState сохраняет курсоры. Монотонность гарантирует сама БД:
// last только растёт, oldest только убывает.
func (p *Postgres) UpsertSyncState(ctx context.Context, state domain.SyncState) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO sync_state (channel_id, last_synced_message_id, oldest_synced_message_id, last_sync_at, initial_backfill_complete)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (channel_id) DO UPDATE SET
  last_synced_message_id = CASE
    WHEN EXCLUDED.last_synced_message_id IS NULL THEN sync_state.last_synced_message_id
    WHEN sync_state.last_synced_message_id IS NULL THEN EXCLUDED.last_synced_message_id
    ELSE GREATEST(sync_state.last_synced_message_id, EXCLUDED.last_synced_message_id) END,
  oldest_synced_message_id = CASE
    WHEN EXCLUDED.oldest_synced_message_id IS NULL THEN sync_state.oldest_synced_message_id
    WHEN sync_state.oldest_synced_message_id IS NULL THEN EXCLUDED.oldest_synced_message_id
    ELSE LEAST(sync_state.oldest_synced_message_id, EXCLUDED.oldest_synced_message_id) END,
  last_sync_at = EXCLUDED.last_sync_at,
  initial_backfill_complete = sync_state.initial_backfill_complete OR EXCLUDED.initial_backfill_complete
`, state.ChannelID, state.LastSyncedMessageID, state.OldestSyncedMessageID, state.LastSyncAt, state.InitialBackfillComplete)
	metrics.ObserveNetworkRequest("postgres", "sync_state_upsert", "sync_state", start, err)
	return err
}
