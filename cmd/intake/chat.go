package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/z-intake/backend/internal/app"
	"github.com/zhouzirui/z-intake/backend/internal/service/intake"
)

func newChatCmd() *cobra.Command {
	var recordDir string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Run an intake conversation in the terminal",
		Long: `Starts a session and reads one turn per line from stdin until the
request is saved or the session fails. Without a configured model, answer
with "field: value" lines, for example "name: Ada Lovelace; role: analyst".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if recordDir != "" {
				cfg.Intake.RecordDir = recordDir
			}

			application, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer application.Close()

			// 空闲会话在终端里同样会过期
			sweepCtx, stopSweeper := context.WithCancel(cmd.Context())
			swept := application.Coordinator.StartSweeper(sweepCtx, cfg.Intake.SweepInterval)
			defer func() {
				stopSweeper()
				<-swept
			}()

			return runChat(cmd.Context(), application.Coordinator, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&recordDir, "record-dir", "", "directory for saved requests (overrides INTAKE_RECORD_DIR)")
	return cmd
}

func runChat(ctx context.Context, coordinator *intake.Coordinator, in io.Reader, out io.Writer) error {
	session, greeting := coordinator.StartSession(ctx)
	fmt.Fprintf(out, "%s\n\n> ", greeting.Prompt)

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			fmt.Fprint(out, "> ")
			continue
		}
		if line == "/quit" || line == "/exit" {
			return nil
		}

		result, err := coordinator.HandleTurn(ctx, session.ID, line)
		if err != nil {
			switch {
			case errors.Is(err, intake.ErrSessionClosed), errors.Is(err, intake.ErrSessionTimeout):
				fmt.Fprintln(out, result.Prompt)
				return nil
			case errors.Is(err, intake.ErrSessionNotFound):
				// the sweeper already evicted it
				fmt.Fprintln(out, "\nThis session expired after being idle. Please start a new one.")
				return nil
			}
			return err
		}

		fmt.Fprintf(out, "\n%s\n", result.Prompt)
		if result.Done() {
			if result.FailureReason != "" {
				return fmt.Errorf("session failed: %s", result.FailureReason)
			}
			return nil
		}
		fmt.Fprint(out, "\n> ")
	}
	return scanner.Err()
}
