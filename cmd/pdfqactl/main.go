package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"pdfqa/internal/app"
	"pdfqa/internal/bootstrap"
	"pdfqa/internal/config"
	"pdfqa/internal/platform/database"
)

var sessionID string

var rootCmd = &cobra.Command{
	Use:   "pdfqactl",
	Short: "Operate a pdfqa deployment from the command line",
	Long: `pdfqactl talks to the same database, vector store and model provider as
the server, using the same configuration (configs/config.toml, .env and
environment variables).`,
	SilenceUsage: true,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE:  runMigrate,
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <file.pdf>...",
	Short: "Upload PDF files into a session",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIngest,
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question and stream the answer to stdout",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete a session with its documents and history",
	RunE:  runReset,
}

func init() {
	for _, cmd := range []*cobra.Command{ingestCmd, askCmd, resetCmd} {
		cmd.Flags().StringVarP(&sessionID, "session", "s", "", "session id (a new session is created when empty or unknown)")
	}
	rootCmd.AddCommand(migrateCmd, ingestCmd, askCmd, resetCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	db, err := database.New(cmd.Context(), cfg.Database.Driver, cfg.DSN())
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	if err := database.Migrate(db); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "migrated %s database\n", cfg.Database.Driver)
	return nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *bootstrap.App, sessionID string) error {
		files := make([]app.UploadFile, 0, len(args))
		for _, path := range args {
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			files = append(files, app.UploadFile{Filename: filepath.Base(path), Content: f})
		}

		result, err := a.Services.Documents.Upload(ctx, sessionID, files)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, f := range result.Files {
			fmt.Fprintf(out, "%s: %d pages, %d chunks\n", f.Filename, f.Pages, f.Chunks)
		}
		fmt.Fprintf(out, "stored %d chunks in session %s\n", result.TotalChunks, sessionID)
		return nil
	})
}

func runAsk(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *bootstrap.App, sessionID string) error {
		fragments, err := a.Services.Answers.Answer(ctx, sessionID, strings.Join(args, " "))
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for fragment, err := range fragments {
			if err != nil {
				fmt.Fprintln(out)
				return err
			}
			fmt.Fprint(out, fragment)
		}
		fmt.Fprintln(out)
		return nil
	})
}

func runReset(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, a *bootstrap.App, sessionID string) error {
		session, err := a.Services.Sessions.Reset(ctx, sessionID)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "session %s reset, new session %s\n", sessionID, session.ID)
		return nil
	})
}

// withApp boots the app, resolves the --session flag and reports the
// effective session id on stderr.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *bootstrap.App, sessionID string) error) error {
	ctx := cmd.Context()
	a, err := bootstrap.New(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			a.Logger.Warn("close resources failed", "error", err)
		}
	}()

	session, created, err := a.Services.Sessions.Resolve(ctx, sessionID)
	if err != nil {
		return err
	}
	if created {
		fmt.Fprintf(cmd.ErrOrStderr(), "using new session %s\n", session.ID)
	}
	return fn(ctx, a, session.ID)
}
