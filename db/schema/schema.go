// Package schema declares the relational tables and applies them with ent's migrator.
package schema

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

var textType = map[string]string{dialect.Postgres: "text", dialect.SQLite: "text"}

var (
	// ChatMessagesColumns holds the columns for the "chat_messages" table.
	ChatMessagesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "user_id", Type: field.TypeString, Size: 255},
		{Name: "role", Type: field.TypeString, Size: 10},
		{Name: "content", Type: field.TypeString, SchemaType: textType},
		{Name: "message_type", Type: field.TypeString, Size: 10, Default: "text"},
		{Name: "file_name", Type: field.TypeString, Nullable: true, Size: 255},
		{Name: "storage_path", Type: field.TypeString, Nullable: true, SchemaType: textType},
		{Name: "content_type", Type: field.TypeString, Nullable: true, Size: 100},
		{Name: "file_size", Type: field.TypeInt64, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
	}
	// ChatMessagesTable holds the schema information for the "chat_messages" table.
	ChatMessagesTable = &schema.Table{
		Name:       "chat_messages",
		Columns:    ChatMessagesColumns,
		PrimaryKey: []*schema.Column{ChatMessagesColumns[0]},
		Indexes: []*schema.Index{
			{Name: "chatmessage_user_id_created_at", Columns: []*schema.Column{ChatMessagesColumns[1], ChatMessagesColumns[9]}},
			{Name: "chatmessage_created_at", Columns: []*schema.Column{ChatMessagesColumns[9]}},
		},
	}

	// AnalysesColumns holds the columns for the "analyses" table.
	AnalysesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "user_id", Type: field.TypeString, Size: 255},
		{Name: "parsed_data", Type: field.TypeJSON},
		{Name: "analysis", Type: field.TypeJSON},
		{Name: "title", Type: field.TypeString, Nullable: true, Size: 255},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	// AnalysesTable holds the schema information for the "analyses" table.
	AnalysesTable = &schema.Table{
		Name:       "analyses",
		Columns:    AnalysesColumns,
		PrimaryKey: []*schema.Column{AnalysesColumns[0]},
		Indexes: []*schema.Index{
			{Name: "analysis_user_id_created_at", Columns: []*schema.Column{AnalysesColumns[1], AnalysesColumns[5]}},
		},
	}

	// SubscriptionsColumns holds the columns for the "subscriptions" table.
	SubscriptionsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "user_id", Type: field.TypeString, Size: 255},
		{Name: "stripe_customer_id", Type: field.TypeString, Nullable: true, Size: 255},
		{Name: "stripe_subscription_id", Type: field.TypeString, Unique: true, Size: 255},
		{Name: "status", Type: field.TypeString, Size: 20},
		{Name: "plan", Type: field.TypeString, Size: 20},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	// SubscriptionsTable holds the schema information for the "subscriptions" table.
	SubscriptionsTable = &schema.Table{
		Name:       "subscriptions",
		Columns:    SubscriptionsColumns,
		PrimaryKey: []*schema.Column{SubscriptionsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "subscription_user_id_status", Columns: []*schema.Column{SubscriptionsColumns[1], SubscriptionsColumns[4]}},
		},
	}

	// Tables holds all the tables in the schema.
	Tables = []*schema.Table{
		ChatMessagesTable,
		AnalysesTable,
		SubscriptionsTable,
	}
)

// Create applies Tables through drv, adding missing tables, columns and indexes.
func Create(ctx context.Context, drv dialect.Driver) error {
	m, err := schema.NewMigrate(drv)
	if err != nil {
		return fmt.Errorf("schema: new migrate: %w", err)
	}
	if err := m.Create(ctx, Tables...); err != nil {
		return fmt.Errorf("schema: create: %w", err)
	}
	return nil
}
