package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/deusflow/hnsummary/internal/app"
	"github.com/deusflow/hnsummary/internal/config"
	"github.com/deusflow/hnsummary/internal/llm"
	"github.com/deusflow/hnsummary/internal/logger"
)

// newTokenizer selects the tokenizer for the sanitize command.
var newTokenizer = func(model string) (llm.Tokenizer, error) {
	return llm.NewTiktoken(model)
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp() *cli.App {
	runCommand := runCmd()
	a := &cli.App{
		Name:    "hnsummary",
		Usage:   "Publish summarized Hacker News pages and an Atom feed",
		Version: Version,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "debug", Usage: "Enable debug logging"},
		},
		Action: runCommand.Action,
		Commands: []*cli.Command{
			runCommand,
			dailyCmd(),
			frontpageCmd(),
			expireCmd(),
			sanitizeCmd(),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	a.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return a
}

// withApp loads the configuration, starts logging and hands a ready App to fn.
func withApp(fn func(ctx context.Context, c *cli.Context, a *app.App) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger.Init(cfg.Debug || c.Bool("debug"), cfg.LogFile)

		ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := app.New(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		return fn(ctx, c, a)
	}
}

// runCmd creates the run command, also used when no command is given.
func runCmd() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Publish daily pages and the front page, then expire old cache entries",
		Action: withApp(func(ctx context.Context, _ *cli.Context, a *app.App) error {
			return a.Run(ctx)
		}),
	}
}

// dailyCmd creates the daily command.
func dailyCmd() *cli.Command {
	return &cli.Command{
		Name:  "daily",
		Usage: "Publish daily digest pages when due",
		Action: withApp(func(ctx context.Context, _ *cli.Context, a *app.App) error {
			return a.GenDaily(ctx)
		}),
	}
}

// frontpageCmd creates the frontpage command.
func frontpageCmd() *cli.Command {
	return &cli.Command{
		Name:  "frontpage",
		Usage: "Publish index.html, zh.html and feed.xml",
		Action: withApp(func(ctx context.Context, _ *cli.Context, a *app.App) error {
			return a.GenFrontpage(ctx)
		}),
	}
}

// expireCmd creates the expire command.
func expireCmd() *cli.Command {
	return &cli.Command{
		Name:  "expire",
		Usage: "Remove cached summaries and translations past their TTL",
		Action: withApp(func(_ context.Context, c *cli.Context, a *app.App) error {
			removed, err := a.Expire()
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "removed %d expired cache entries\n", removed)
			return nil
		}),
	}
}

// sanitizeCmd creates the sanitize command.
func sanitizeCmd() *cli.Command {
	return &cli.Command{
		Name:  "sanitize",
		Usage: "Fit text from stdin into a prompt budget and print it",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "overhead", Usage: "Tokens already spent by the surrounding prompt"},
			&cli.IntFlag{Name: "budget", Value: llm.DefaultContextBudget, EnvVars: []string{"CONTEXT_BUDGET"}, Usage: "Context budget in tokens"},
			&cli.StringFlag{Name: "model", Value: "gpt-3.5-turbo", EnvVars: []string{"TOKENIZER_MODEL", "OPENAI_MODEL"}, Usage: "Model selecting the tokenizer"},
		},
		Action: func(c *cli.Context) error {
			input, err := io.ReadAll(c.App.Reader)
			if err != nil {
				return fmt.Errorf("failed to read stdin: %w", err)
			}

			tok, err := newTokenizer(c.String("model"))
			if err != nil {
				return err
			}
			s := llm.NewSanitizer(tok, c.Int("budget"))
			out := s.Fit(string(input), c.Int("overhead"))

			fmt.Fprintln(c.App.Writer, out)
			fmt.Fprintf(c.App.ErrWriter, "tokens: %d/%d\n", s.Count(out), s.Budget()-c.Int("overhead"))
			return nil
		},
	}
}
