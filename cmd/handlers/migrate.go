package handlers

import (
	"context"
	"database/sql"
	"fmt"

	"newsdesk/internal/config"
	"newsdesk/internal/logger"
	"newsdesk/internal/persistence"

	"github.com/spf13/cobra"
)

// NewMigrateCmd creates the migrate command for database migrations
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage PostgreSQL schema migrations",
		Long: `Manage the PostgreSQL schema.

Subcommands:
  up       Apply all pending migrations
  status   Show migration status
  rollback Revert the last migration

The migration system tracks applied migrations in the schema_migrations table
and applies new migrations in sequential order. The local SQLite store
creates its schema when it is opened and needs no migrations.

Examples:
  # Apply all pending migrations
  newsdesk migrate up

  # Check migration status
  newsdesk migrate status

  # Revert the last migration
  newsdesk migrate rollback`,
	}

	cmd.AddCommand(newMigrateUpCmd())
	cmd.AddCommand(newMigrateStatusCmd())
	cmd.AddCommand(newMigrateRollbackCmd())

	return cmd
}

func newMigrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Long: `Apply all pending database migrations.

Each migration is applied in its own transaction and recorded in
schema_migrations. The vector_records migration needs the pgvector
extension to be available on the server.

Example:
  newsdesk migrate up`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrateUp(cmd.Context())
		},
	}
}

func newMigrateStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		Long: `Show the status of all migrations.

Displays which migrations have been applied and which are pending.

Example:
  newsdesk migrate status`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrateStatus(cmd.Context())
		},
	}
}

func newMigrateRollbackCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Revert the last migration",
		Long: `Revert the last applied migration using its down section.

⚠️  WARNING: Reverting drops the tables the migration created, with their data.

This is a dangerous operation and should only be used in development.
Use --force to skip confirmation prompt.

Example:
  newsdesk migrate rollback
  newsdesk migrate rollback --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrateRollback(cmd.Context(), force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Skip confirmation prompt")

	return cmd
}

// openMigrator connects to PostgreSQL; migrations do not apply to SQLite.
func openMigrator() (*persistence.MigrationManager, *sql.DB, error) {
	if driver := config.Get().Database.Driver; driver != "postgres" {
		return nil, nil, fmt.Errorf("migrations apply to PostgreSQL only (database.driver is %q)", driver)
	}

	_, sqlDB, err := openDatabase()
	if err != nil {
		return nil, nil, err
	}
	return persistence.NewMigrationManager(sqlDB), sqlDB, nil
}

func runMigrateUp(ctx context.Context) error {
	migrator, sqlDB, err := openMigrator()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	fmt.Println("✅ All migrations applied successfully")
	return nil
}

func runMigrateStatus(ctx context.Context) error {
	migrator, sqlDB, err := openMigrator()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	status, err := migrator.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}

	if len(status) == 0 {
		fmt.Println("No migrations found")
		return nil
	}

	fmt.Println("📊 Migration Status")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("%-10s %-10s %s\n", "Version", "Status", "Description")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	appliedCount := 0
	pendingCount := 0

	for _, m := range status {
		statusStr := "pending"
		statusIcon := "⏳"
		if m.Applied {
			statusStr = "applied"
			statusIcon = "✅"
			appliedCount++
		} else {
			pendingCount++
		}

		fmt.Printf("%-10d %s %-8s %s\n", m.Version, statusIcon, statusStr, m.Description)
	}

	fmt.Println()
	fmt.Printf("Applied: %d | Pending: %d | Total: %d\n", appliedCount, pendingCount, len(status))

	if pendingCount > 0 {
		fmt.Println("\nRun 'newsdesk migrate up' to apply pending migrations")
	}

	return nil
}

func runMigrateRollback(ctx context.Context, force bool) error {
	log := logger.Get()

	if !force {
		fmt.Println("⚠️  WARNING: Rolling back drops the objects the last migration created.")
		fmt.Println()
		fmt.Print("Are you sure you want to proceed? (yes/no): ")

		var response string
		if _, err := fmt.Scanln(&response); err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		if response != "yes" {
			fmt.Println("Rollback cancelled")
			return nil
		}
	}

	migrator, sqlDB, err := openMigrator()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if err := migrator.Rollback(ctx); err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}

	log.Warn("Last migration reverted")
	fmt.Println("⚠️  Last migration reverted")

	return nil
}
