package repository

import (
	"context"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/lumo-backend/constants"
	"github.com/joseph-ayodele/lumo-backend/internal/entity"
)

const messagesTable = "chat_messages"

var messageColumns = []string{
	"id", "user_id", "role", "content", "message_type",
	"file_name", "storage_path", "content_type", "file_size", "created_at",
}

type MessageRepository interface {
	Create(ctx context.Context, msg *entity.ChatMessage) (*entity.ChatMessage, error)
	ListSince(ctx context.Context, userID string, since time.Time) ([]*entity.ChatMessage, error)
	// PurgeBefore deletes the user's rows older than cutoff and returns the storage
	// paths those rows referenced. An empty userID purges every user.
	PurgeBefore(ctx context.Context, userID string, cutoff time.Time) (int, []string, error)
	DeleteAllForUser(ctx context.Context, userID string) (int, []string, error)
}

type messageRepository struct {
	db     *DB
	logger *slog.Logger
	now    func() time.Time
}

func NewMessageRepository(db *DB, logger *slog.Logger) MessageRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &messageRepository{db: db, logger: logger, now: time.Now}
}

func (r *messageRepository) Create(ctx context.Context, msg *entity.ChatMessage) (*entity.ChatMessage, error) {
	out := *msg
	if out.ID == uuid.Nil {
		out.ID = uuid.New()
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = r.now()
	}
	out.CreatedAt = out.CreatedAt.UTC()
	if out.MessageType == "" {
		out.MessageType = constants.MessageText
	}

	q, args := r.db.builder().Insert(messagesTable).
		Columns(messageColumns...).
		Values(out.ID, out.UserID, string(out.Role), out.Content, string(out.MessageType),
			out.FileName, out.StoragePath, out.ContentType, out.FileSize, out.CreatedAt).
		Query()
	if _, err := r.db.exec(ctx, q, args); err != nil {
		r.logger.Error("failed to create chat message", "user_id", out.UserID, "role", out.Role, "error", err)
		return nil, err
	}
	return &out, nil
}

func (r *messageRepository) ListSince(ctx context.Context, userID string, since time.Time) ([]*entity.ChatMessage, error) {
	q, args := r.db.builder().Select(messageColumns...).
		From(entsql.Table(messagesTable)).
		Where(entsql.And(
			entsql.EQ("user_id", userID),
			entsql.GTE("created_at", since.UTC()),
		)).
		OrderBy("created_at").
		Query()

	var out []*entity.ChatMessage
	err := r.db.query(ctx, q, args, func(rows *entsql.Rows) error {
		m, err := scanMessage(rows)
		if err != nil {
			return err
		}
		out = append(out, m)
		return nil
	})
	if err != nil {
		r.logger.Error("failed to list chat messages", "user_id", userID, "error", err)
		return nil, err
	}
	return out, nil
}

func (r *messageRepository) PurgeBefore(ctx context.Context, userID string, cutoff time.Time) (int, []string, error) {
	pred := entsql.LT("created_at", cutoff.UTC())
	if userID != "" {
		pred = entsql.And(entsql.EQ("user_id", userID), pred)
	}
	return r.deleteWhere(ctx, pred)
}

func (r *messageRepository) DeleteAllForUser(ctx context.Context, userID string) (int, []string, error) {
	return r.deleteWhere(ctx, entsql.EQ("user_id", userID))
}

// deleteWhere removes matching rows in one statement and returns the attachment
// paths of exactly the rows it removed.
func (r *messageRepository) deleteWhere(ctx context.Context, pred *entsql.Predicate) (int, []string, error) {
	q, args := r.db.builder().Delete(messagesTable).Where(pred).Query()
	var (
		n     int
		paths []string
	)
	err := r.db.query(ctx, q+" RETURNING storage_path", args, func(rows *entsql.Rows) error {
		var p entsql.NullString
		if err := rows.Scan(&p); err != nil {
			return err
		}
		n++
		if p.Valid && p.String != "" {
			paths = append(paths, p.String)
		}
		return nil
	})
	if err != nil {
		r.logger.Error("failed to delete chat messages", "error", err)
		return 0, nil, err
	}
	return n, paths, nil
}

func scanMessage(rows *entsql.Rows) (*entity.ChatMessage, error) {
	var (
		m           entity.ChatMessage
		role, kind  string
		fileName    entsql.NullString
		storagePath entsql.NullString
		contentType entsql.NullString
		fileSize    entsql.NullInt64
	)
	if err := rows.Scan(&m.ID, &m.UserID, &role, &m.Content, &kind,
		&fileName, &storagePath, &contentType, &fileSize, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.Role = constants.Role(role)
	m.MessageType = constants.MessageKind(kind)
	m.FileName = nullString(fileName)
	m.StoragePath = nullString(storagePath)
	m.ContentType = nullString(contentType)
	if fileSize.Valid {
		v := fileSize.Int64
		m.FileSize = &v
	}
	m.CreatedAt = m.CreatedAt.UTC()
	return &m, nil
}

func nullString(ns entsql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
