package repository

import (
	"context"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/lumo-backend/constants"
	"github.com/joseph-ayodele/lumo-backend/internal/common"
	"github.com/joseph-ayodele/lumo-backend/internal/entity"
)

const subscriptionsTable = "subscriptions"

var subscriptionColumns = []string{
	"id", "user_id", "stripe_customer_id", "stripe_subscription_id", "status", "plan", "created_at", "updated_at",
}

var entitledStatuses = []any{string(constants.SubscriptionActive), string(constants.SubscriptionTrialing)}

type SubscriptionRepository interface {
	// Upsert inserts or updates the row keyed by the billing subscription id.
	Upsert(ctx context.Context, s *entity.Subscription) error
	SetStatus(ctx context.Context, subscriptionID string, status constants.SubscriptionStatus) (int, error)
	ListEntitled(ctx context.Context, userID string) ([]*entity.Subscription, error)
	// CustomerID returns the most recent billing customer id for the user.
	CustomerID(ctx context.Context, userID string) (string, error)
}

type subscriptionRepository struct {
	db     *DB
	logger *slog.Logger
	now    func() time.Time
}

func NewSubscriptionRepository(db *DB, logger *slog.Logger) SubscriptionRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &subscriptionRepository{db: db, logger: logger, now: time.Now}
}

func (r *subscriptionRepository) Upsert(ctx context.Context, s *entity.Subscription) error {
	now := r.now().UTC()
	id := s.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	q, args := r.db.builder().Insert(subscriptionsTable).
		Columns(subscriptionColumns...).
		Values(id, s.UserID, s.StripeCustomerID, s.StripeSubscriptionID, string(s.Status), string(s.Plan), now, now).
		OnConflict(
			entsql.ConflictColumns("stripe_subscription_id"),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				u.SetExcluded("user_id")
				u.SetExcluded("stripe_customer_id")
				u.SetExcluded("status")
				u.SetExcluded("plan")
				u.SetExcluded("updated_at")
			}),
		).
		Query()
	if _, err := r.db.exec(ctx, q, args); err != nil {
		r.logger.Error("failed to upsert subscription", "subscription_id", s.StripeSubscriptionID, "error", err)
		return err
	}
	return nil
}

func (r *subscriptionRepository) SetStatus(ctx context.Context, subscriptionID string, status constants.SubscriptionStatus) (int, error) {
	q, args := r.db.builder().Update(subscriptionsTable).
		Set("status", string(status)).
		Set("updated_at", r.now().UTC()).
		Where(entsql.EQ("stripe_subscription_id", subscriptionID)).
		Query()
	n, err := r.db.exec(ctx, q, args)
	if err != nil {
		r.logger.Error("failed to update subscription status", "subscription_id", subscriptionID, "error", err)
		return 0, err
	}
	return int(n), nil
}

func (r *subscriptionRepository) ListEntitled(ctx context.Context, userID string) ([]*entity.Subscription, error) {
	q, args := r.db.builder().Select(subscriptionColumns...).
		From(entsql.Table(subscriptionsTable)).
		Where(entsql.And(entsql.EQ("user_id", userID), entsql.In("status", entitledStatuses...))).
		OrderBy(entsql.Desc("created_at")).
		Query()

	var out []*entity.Subscription
	err := r.db.query(ctx, q, args, func(rows *entsql.Rows) error {
		s, err := scanSubscription(rows)
		if err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	if err != nil {
		r.logger.Error("failed to list subscriptions", "user_id", userID, "error", err)
		return nil, err
	}
	return out, nil
}

func (r *subscriptionRepository) CustomerID(ctx context.Context, userID string) (string, error) {
	q, args := r.db.builder().Select("stripe_customer_id").
		From(entsql.Table(subscriptionsTable)).
		Where(entsql.And(entsql.EQ("user_id", userID), entsql.NotNull("stripe_customer_id"))).
		OrderBy(entsql.Desc("updated_at")).
		Limit(1).
		Query()

	var customer string
	err := r.db.query(ctx, q, args, func(rows *entsql.Rows) error {
		var ns entsql.NullString
		if err := rows.Scan(&ns); err != nil {
			return err
		}
		customer = ns.String
		return nil
	})
	if err != nil {
		return "", err
	}
	if customer == "" {
		return "", common.NotFoundError("No active subscription found")
	}
	return customer, nil
}

func scanSubscription(rows *entsql.Rows) (*entity.Subscription, error) {
	var (
		s            entity.Subscription
		customer     entsql.NullString
		status, plan string
	)
	if err := rows.Scan(&s.ID, &s.UserID, &customer, &s.StripeSubscriptionID, &status, &plan, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.StripeCustomerID = nullString(customer)
	s.Status = constants.SubscriptionStatus(status)
	s.Plan = constants.Plan(plan)
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	return &s, nil
}
