package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dukerupert/chorewheel/internal/backup"
	"github.com/dukerupert/chorewheel/internal/config"
	"github.com/dukerupert/chorewheel/internal/database"
	"github.com/dukerupert/chorewheel/internal/logging"
)

func newBackupManager(db *sql.DB, cfg config.Backup, logger *slog.Logger) *backup.Manager {
	var client backup.ObjectStore
	if cfg.Enabled() {
		client = backup.NewS3Client(backup.S3Config{
			Endpoint:  cfg.Endpoint,
			Region:    cfg.Region,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
		})
	}
	return backup.NewManager(db, client, backup.Config{
		Bucket:     cfg.Bucket,
		Prefix:     cfg.Prefix,
		Passphrase: cfg.Passphrase,
	}, logger)
}

// withBackups loads config and hands a manager to fn. The database is opened
// only when openDB is set; restore must not hold the file it replaces.
func withBackups(configPath string, openDB bool, fn func(*backup.Manager, config.Config) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	var db *sql.DB
	if openDB {
		db, err = database.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer db.Close()
	}
	return fn(newBackupManager(db, cfg.Backup, logger), cfg)
}

func newBackupCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Upload an encrypted database snapshot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackups(*configPath, true, func(m *backup.Manager, _ config.Config) error {
				snap, err := m.Run(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s (%d bytes)\n", snap.Key, snap.Size)
				return nil
			})
		},
	}
	cmd.AddCommand(newBackupListCmd(configPath), newBackupPruneCmd(configPath))
	return cmd
}

func newBackupListCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List uploaded snapshots",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackups(*configPath, false, func(m *backup.Manager, _ config.Config) error {
				snaps, err := m.List(cmd.Context())
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "KEY\tSIZE\tCREATED")
				for _, s := range snaps {
					fmt.Fprintf(tw, "%s\t%d\t%s\n", s.Key, s.Size, s.CreatedAt.Format("2006-01-02 15:04:05"))
				}
				return tw.Flush()
			})
		},
	}
}

func newBackupPruneCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete snapshots older than the configured retention",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackups(*configPath, false, func(m *backup.Manager, cfg config.Config) error {
				n, err := m.Prune(cmd.Context(), cfg.Backup.Retention)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d snapshot(s)\n", n)
				return nil
			})
		},
	}
}

func newRestoreCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "restore KEY",
		Short: "Replace the database with a snapshot (stop the server first)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackups(*configPath, false, func(m *backup.Manager, cfg config.Config) error {
				if err := m.Restore(cmd.Context(), args[0], cfg.DBPath); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "restored %s to %s\n", args[0], cfg.DBPath)
				return nil
			})
		},
	}
}
