package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/lumo-backend/constants"
)

// Subscription mirrors a billing subscription for a user.
type Subscription struct {
	ID                   uuid.UUID                    `json:"id"`
	UserID               string                       `json:"user_id"`
	StripeCustomerID     *string                      `json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID string                       `json:"stripe_subscription_id"`
	Status               constants.SubscriptionStatus `json:"status"`
	Plan                 constants.Plan               `json:"plan"`
	CreatedAt            time.Time                    `json:"created_at"`
	UpdatedAt            time.Time                    `json:"updated_at"`
}
