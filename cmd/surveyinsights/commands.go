package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"SurveyInsights/internal/app"
	"SurveyInsights/internal/config"
	"SurveyInsights/internal/domain"
	"SurveyInsights/internal/logging"
	"SurveyInsights/internal/usecase"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:          "surveyinsights",
		Short:        "Answer questions about a market research survey",
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to the YAML config (default $SURVEY_INSIGHTS_CONFIG)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override logging.level")

	root.AddCommand(
		newAskCmd(opts),
		newIngestCmd(opts),
		newServeCmd(opts),
		newMCPCmd(opts),
		newHistoryCmd(opts),
	)
	return root
}

func (o *rootOptions) load() config.Config {
	cfg := config.Load(o.configPath)
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	return cfg
}

func (o *rootOptions) build(ctx context.Context, cfg config.Config, logOut io.Writer) (*app.Application, *slog.Logger, error) {
	logger := logging.NewWithWriter(logOut, cfg.Logging.Level, cfg.Logging.Format)
	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return application, logger, nil
}

func newAskCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ask [question]",
		Short: "Find the matching survey question and generate insights",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.load()
			if err := cfg.RequireAsk(); err != nil {
				return err
			}

			question := ""
			if len(args) == 1 {
				question = args[0]
			} else {
				var err error
				question, err = readQuestion(cmd.InOrStdin(), cmd.OutOrStdout())
				if err != nil {
					return err
				}
			}

			application, _, err := opts.build(cmd.Context(), cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer application.Close()

			report, err := application.Ask(cmd.Context(), question)
			if errors.Is(err, usecase.ErrNoMatchingQuestion) {
				color.New(color.FgYellow).Fprintln(cmd.OutOrStdout(), "No relevant question found for your query.")
				return nil
			}
			if report.Insights != "" {
				printReport(cmd.OutOrStdout(), report)
			}
			return err
		},
	}
}

func newIngestCmd(opts *rootOptions) *cobra.Command {
	var namespace string
	cmd := &cobra.Command{
		Use:   "ingest <file-or-url>",
		Short: "Chunk, embed and index a questionnaire document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.load()
			if err := cfg.RequireIngest(); err != nil {
				return err
			}
			application, _, err := opts.build(cmd.Context(), cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer application.Close()

			count, err := application.Ingest(cmd.Context(), args[0], namespace)
			if err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "Indexed %d chunks from %s\n", count, args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&namespace, "namespace", "", "index namespace (default retrieval.namespace)")
	return cmd
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the configured survey questions on a schedule and expose metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := opts.load()
			if err := cfg.RequireAsk(); err != nil {
				return err
			}
			application, logger, err := opts.build(cmd.Context(), cfg, os.Stdout)
			if err != nil {
				return err
			}
			defer application.Close()

			logger.Info("serving", "interval", cfg.Scheduler.Every(), "questions", len(cfg.Survey.Questions))
			if err := application.Serve(cmd.Context()); err != nil {
				logger.Error("application stopped", "error", err)
				return err
			}
			return nil
		},
	}
}

func newMCPCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve ask_survey and find_question as MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := opts.load()
			if err := cfg.RequireAsk(); err != nil {
				return err
			}
			// stdout carries the protocol
			application, _, err := opts.build(cmd.Context(), cfg, os.Stderr)
			if err != nil {
				return err
			}
			defer application.Close()
			return application.ServeMCP(version)
		},
	}
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <question-id>",
		Short: "List stored reports for a survey question",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.load()
			application, _, err := opts.build(cmd.Context(), cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer application.Close()

			reports, err := application.History(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			for _, r := range reports {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-9s  %s  %s\n", r.CreatedAt.Format("2006-01-02 15:04"), r.Status, r.Question, r.DocumentURL)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "number of reports to list")
	return cmd
}

func readQuestion(in io.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, "Enter your question about the survey: ")
	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", err
		}
		return "", usecase.ErrEmptyQuestion
	}
	question := strings.TrimSpace(scanner.Text())
	if question == "" {
		return "", usecase.ErrEmptyQuestion
	}
	return question, nil
}

func printReport(w io.Writer, report domain.InsightReport) {
	heading := color.New(color.FgCyan, color.Bold)
	heading.Fprintf(w, "Question %s\n", report.QuestionID)
	fmt.Fprintln(w, strings.TrimSpace(report.QuestionText))
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.TrimSpace(report.Insights))
	if report.DocumentURL != "" {
		fmt.Fprintln(w)
		color.New(color.FgGreen).Fprintf(w, "Saved to %s\n", report.DocumentURL)
	}
}
