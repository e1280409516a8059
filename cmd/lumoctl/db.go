package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/lumo-backend/internal/app"
	"github.com/joseph-ayodele/lumo-backend/internal/chat"
	"github.com/joseph-ayodele/lumo-backend/internal/repository"
	"github.com/joseph-ayodele/lumo-backend/internal/storage"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database tables",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

var dbHealthCmd = &cobra.Command{
	Use:   "dbhealth",
	Short: "Check database connectivity",
	Args:  cobra.NoArgs,
	RunE:  runDBHealth,
}

var cleanupChatsCmd = &cobra.Command{
	Use:   "cleanup-chats",
	Short: "Delete chat messages older than --minutes",
	Long:  `Deletes every user's chat messages older than the given age, together with their stored attachments.`,
	Args:  cobra.NoArgs,
	RunE:  runCleanupChats,
}

// cleanupMinutes is a flag for the cleanup-chats command.
var cleanupMinutes int

func init() {
	cleanupChatsCmd.Flags().IntVarP(&cleanupMinutes, "minutes", "m", 30, "Delete messages older than this many minutes")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(dbHealthCmd)
	rootCmd.AddCommand(cleanupChatsCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	if err := requireDB(cfg); err != nil {
		return err
	}
	cfg.Database.AutoMigrate = true
	db, err := app.OpenDB(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer repository.Close(db, logger)
	cmd.Println("migrations applied")
	return nil
}

func runDBHealth(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	if err := requireDB(cfg); err != nil {
		return err
	}
	cfg.Database.AutoMigrate = false
	start := time.Now()
	db, err := app.OpenDB(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer repository.Close(db, logger)
	cmd.Printf("DB health: OK (%s, %dms)\n", db.Dialect(), time.Since(start).Milliseconds())
	return nil
}

func runCleanupChats(cmd *cobra.Command, _ []string) error {
	if cleanupMinutes < 1 {
		return cmd.Help()
	}
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	if err := requireDB(cfg); err != nil {
		return err
	}
	ctx := cmd.Context()
	db, err := app.OpenDB(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer repository.Close(db, logger)

	cloud, err := app.NewCloud(ctx, cfg)
	if err != nil {
		return err
	}
	attachments := storage.NewUploader(storage.NewS3Store(cloud.S3, cfg.Storage.AttachmentBucket),
		storage.Config{Prefix: cfg.Storage.AttachmentPrefix}, logger)
	svc := chat.NewService(repository.NewMessageRepository(db, logger), nil, attachments, nil, chat.Config{}, logger)

	n, err := svc.PurgeExpired(ctx, time.Duration(cleanupMinutes)*time.Minute)
	if err != nil {
		return err
	}
	cmd.Printf("Deleted %d old chat messages\n", n)
	return nil
}
