package constants

import "strings"

// MarkerStatus is the interpretation of a marker value against its reference range.
type MarkerStatus string

const (
	MarkerNormal  MarkerStatus = "normal"
	MarkerHigh    MarkerStatus = "high"
	MarkerLow     MarkerStatus = "low"
	MarkerUnknown MarkerStatus = "unknown"
)

// ParseMarkerStatus maps loose model output onto a MarkerStatus.
func ParseMarkerStatus(s string) MarkerStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "normal", "within range", "in range", "ok":
		return MarkerNormal
	case "high", "h", "elevated", "above":
		return MarkerHigh
	case "low", "l", "below", "decreased":
		return MarkerLow
	default:
		return MarkerUnknown
	}
}

// Abnormal reports whether the status counts towards the "markers abnormal" summary.
func (s MarkerStatus) Abnormal() bool {
	return s == MarkerHigh || s == MarkerLow
}

// Role of a chat message author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MessageKind describes the payload of a chat message.
type MessageKind string

const (
	MessageText  MessageKind = "text"
	MessageImage MessageKind = "image"
	MessagePDF   MessageKind = "pdf"
)

// MessageKindFor maps an attachment kind onto a message kind.
func MessageKindFor(k FileKind) MessageKind {
	if k == PDF {
		return MessagePDF
	}
	return MessageImage
}

// SubscriptionStatus is the canonical status for rows in subscriptions.
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionTrialing  SubscriptionStatus = "trialing"
	SubscriptionPastDue   SubscriptionStatus = "past_due"
	SubscriptionUnpaid    SubscriptionStatus = "unpaid"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// MapStripeStatus converts a billing provider status. Unknown values count as active.
func MapStripeStatus(s string) SubscriptionStatus {
	switch s {
	case "active":
		return SubscriptionActive
	case "trialing":
		return SubscriptionTrialing
	case "past_due":
		return SubscriptionPastDue
	case "unpaid":
		return SubscriptionUnpaid
	case "canceled":
		return SubscriptionCancelled
	default:
		return SubscriptionActive
	}
}

// Entitled reports whether the status grants premium access.
func (s SubscriptionStatus) Entitled() bool {
	return s == SubscriptionActive || s == SubscriptionTrialing
}

// Plan is a billing plan name.
type Plan string

const (
	PlanMonthly Plan = "monthly"
	PlanYearly  Plan = "yearly"
)
