package repository

import (
	"context"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/lumo-backend/internal/common"
	"github.com/joseph-ayodele/lumo-backend/internal/entity"
)

const analysesTable = "analyses"

var analysisColumns = []string{"id", "user_id", "parsed_data", "analysis", "title", "created_at", "updated_at"}

type AnalysisRepository interface {
	Create(ctx context.Context, a *entity.Analysis) (*entity.Analysis, error)
	ListByUser(ctx context.Context, userID string) ([]*entity.Analysis, error)
	GetForUser(ctx context.Context, id uuid.UUID, userID string) (*entity.Analysis, error)
	DeleteForUser(ctx context.Context, id uuid.UUID, userID string) error
	DeleteAllForUser(ctx context.Context, userID string) (int, error)
}

type analysisRepository struct {
	db     *DB
	logger *slog.Logger
	now    func() time.Time
}

func NewAnalysisRepository(db *DB, logger *slog.Logger) AnalysisRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &analysisRepository{db: db, logger: logger, now: time.Now}
}

func (r *analysisRepository) Create(ctx context.Context, a *entity.Analysis) (*entity.Analysis, error) {
	out := *a
	if out.ID == uuid.Nil {
		out.ID = uuid.New()
	}
	now := r.now().UTC()
	out.CreatedAt, out.UpdatedAt = now, now

	q, args := r.db.builder().Insert(analysesTable).
		Columns(analysisColumns...).
		Values(out.ID, out.UserID, []byte(out.ParsedData), []byte(out.Analysis), out.Title, out.CreatedAt, out.UpdatedAt).
		Query()
	if _, err := r.db.exec(ctx, q, args); err != nil {
		r.logger.Error("failed to create analysis", "user_id", out.UserID, "error", err)
		return nil, err
	}
	return &out, nil
}

func (r *analysisRepository) ListByUser(ctx context.Context, userID string) ([]*entity.Analysis, error) {
	q, args := r.db.builder().Select(analysisColumns...).
		From(entsql.Table(analysesTable)).
		Where(entsql.EQ("user_id", userID)).
		OrderBy(entsql.Desc("created_at")).
		Query()

	var out []*entity.Analysis
	err := r.db.query(ctx, q, args, func(rows *entsql.Rows) error {
		a, err := scanAnalysis(rows)
		if err != nil {
			return err
		}
		out = append(out, a)
		return nil
	})
	if err != nil {
		r.logger.Error("failed to list analyses", "user_id", userID, "error", err)
		return nil, err
	}
	return out, nil
}

func (r *analysisRepository) GetForUser(ctx context.Context, id uuid.UUID, userID string) (*entity.Analysis, error) {
	q, args := r.db.builder().Select(analysisColumns...).
		From(entsql.Table(analysesTable)).
		Where(entsql.And(entsql.EQ("id", id), entsql.EQ("user_id", userID))).
		Limit(1).
		Query()

	var found *entity.Analysis
	err := r.db.query(ctx, q, args, func(rows *entsql.Rows) error {
		a, err := scanAnalysis(rows)
		found = a
		return err
	})
	if err != nil {
		r.logger.Error("failed to get analysis", "analysis_id", id, "error", err)
		return nil, err
	}
	if found == nil {
		return nil, common.NotFoundError("Analysis not found")
	}
	return found, nil
}

func (r *analysisRepository) DeleteForUser(ctx context.Context, id uuid.UUID, userID string) error {
	q, args := r.db.builder().Delete(analysesTable).
		Where(entsql.And(entsql.EQ("id", id), entsql.EQ("user_id", userID))).
		Query()
	n, err := r.db.exec(ctx, q, args)
	if err != nil {
		r.logger.Error("failed to delete analysis", "analysis_id", id, "error", err)
		return err
	}
	if n == 0 {
		return common.NotFoundError("Analysis not found")
	}
	return nil
}

func (r *analysisRepository) DeleteAllForUser(ctx context.Context, userID string) (int, error) {
	q, args := r.db.builder().Delete(analysesTable).Where(entsql.EQ("user_id", userID)).Query()
	n, err := r.db.exec(ctx, q, args)
	if err != nil {
		r.logger.Error("failed to delete analyses", "user_id", userID, "error", err)
		return 0, err
	}
	return int(n), nil
}

func scanAnalysis(rows *entsql.Rows) (*entity.Analysis, error) {
	var (
		a          entity.Analysis
		parsed, an []byte
		title      entsql.NullString
	)
	if err := rows.Scan(&a.ID, &a.UserID, &parsed, &an, &title, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.ParsedData = append([]byte(nil), parsed...)
	a.Analysis = append([]byte(nil), an...)
	a.Title = nullString(title)
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return &a, nil
}
