package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aescanero/aerodoc/internal/application/orchestrator"
	"github.com/aescanero/aerodoc/internal/config"
	"github.com/aescanero/aerodoc/pkg/domain"
)

var askOutput string

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer an aeronautics question",
	Long: `Runs the pipeline for one question and prints the reviewed document.

When a gate rejects the question, the reason is printed and a new question is
read from standard input. Each new question starts a fresh run.`,
	Args: cobra.ArbitraryArgs,
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askOutput, "output", "o", "", "write the document to this file")
}

// asker runs one question to its outcome.
type asker interface {
	Ask(ctx context.Context, question string) (*domain.Outcome, error)
}

var errNoQuestion = errors.New("no question provided")

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := initLogger(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	outcome, err := askLoop(ctx, a.manager, strings.Join(args, " "), cmd.InOrStdin(), cmd.OutOrStdout())
	if err != nil {
		return err
	}

	switch outcome.Status {
	case domain.OutcomeCompleted:
		if askOutput == "" {
			fmt.Fprintln(cmd.OutOrStdout(), outcome.Document)
			return nil
		}
		if err := os.WriteFile(askOutput, []byte(outcome.Document), 0o644); err != nil {
			return fmt.Errorf("failed to write document: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Document written to %s\n", askOutput)
		return nil
	case domain.OutcomeCancelled:
		return errors.New("run cancelled")
	default:
		return fmt.Errorf("execution could not complete: %s", outcome.Message)
	}
}

// askLoop asks question, or reads one from in when it is empty, and keeps
// asking new questions while the pipeline rejects them.
func askLoop(ctx context.Context, a asker, question string, in io.Reader, out io.Writer) (*domain.Outcome, error) {
	scanner := bufio.NewScanner(in)
	next := func() (string, error) {
		fmt.Fprint(out, "Enter your aeronautics question: ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return "", fmt.Errorf("failed to read question: %w", err)
			}
			return "", errNoQuestion
		}
		return scanner.Text(), nil
	}

	for {
		if strings.TrimSpace(question) == "" {
			q, err := next()
			if err != nil {
				return nil, err
			}
			question = q
			continue
		}

		outcome, err := a.Ask(ctx, question)
		if errors.Is(err, orchestrator.ErrInvalidQuestion) {
			fmt.Fprintf(out, "%v\n", err)
			question = ""
			continue
		}
		if err != nil {
			return nil, err
		}

		if outcome.Status != domain.OutcomeRejected {
			return outcome, nil
		}

		fmt.Fprintf(out, "%s\n", outcome.Message)
		question = ""
	}
}
