// Command bbpr opens a Bitbucket Server pull request
// from the changes in a local directory.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/byte4ever/bbpr/access"
	"github.com/byte4ever/bbpr/bitbucket"
	"github.com/byte4ever/bbpr/config"
	"github.com/byte4ever/bbpr/git"
	"github.com/byte4ever/bbpr/prer"
)

// tokenEnv is read when --token is not given.
const tokenEnv = "BBPR_TOKEN"

type options struct {
	configPath    string
	repoURL       string
	title         string
	description   string
	targetBranch  string
	sourceBranch  string
	dir           string
	commitMessage string
	authorName    string
	authorEmail   string
	token         string
	output        string
	logLevel      string
	logFormat     string
	dryRun        bool
}

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt,
	)
	defer stop()

	return newRootCmd(os.Stdout).ExecuteContext(ctx)
}

func newRootCmd(out io.Writer) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "bbpr",
		Short: "Open a Bitbucket Server pull request from local changes",
		Long: "bbpr makes sure the source branch exists, commits " +
			"and pushes the working directory onto it, and " +
			"opens a pull request into the target branch.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return execute(cmd.Context(), out, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(
		&opts.configPath, "config", "",
		"YAML file with integrations and scaffolder defaults",
	)
	f.StringVar(
		&opts.repoURL, "repo-url", "",
		"Repository location, e.g. host/projects/P/repos/r",
	)
	f.StringVar(&opts.title, "title", "", "Pull request title")
	f.StringVar(
		&opts.description, "description", "",
		"Pull request description",
	)
	f.StringVar(
		&opts.targetBranch, "target-branch", "",
		"Branch to merge into (default from config or master)",
	)
	f.StringVar(
		&opts.sourceBranch, "source-branch", "",
		"Branch carrying the changes",
	)
	f.StringVar(
		&opts.dir, "dir", ".",
		"Working directory holding the changes",
	)
	f.StringVar(
		&opts.commitMessage, "commit-message", "",
		"Commit message, may use {{TITLE}} style placeholders",
	)
	f.StringVar(
		&opts.authorName, "author-name", "",
		"Commit author name",
	)
	f.StringVar(
		&opts.authorEmail, "author-email", "",
		"Commit author email",
	)
	f.StringVar(
		&opts.token, "token", "",
		"Token overriding the configured credential (env "+
			tokenEnv+")",
	)
	f.StringVarP(
		&opts.output, "output", "o", "text",
		"Output format: text or json",
	)
	f.StringVar(
		&opts.logLevel, "log-level", "info",
		"Log level: debug, info, warn or error",
	)
	f.StringVar(
		&opts.logFormat, "log-format", "text",
		"Log format: text or json",
	)
	f.BoolVar(
		&opts.dryRun, "dry-run", false,
		"Look up branches only, make no change",
	)

	for _, name := range []string{
		"repo-url", "title", "source-branch",
	} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}

func execute(
	ctx context.Context,
	out io.Writer,
	opts options,
) error {
	const errCtx = "running bbpr"

	logger, err := newLogger(
		os.Stderr, opts.logLevel, opts.logFormat,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	slog.SetDefault(logger)

	if opts.output != "text" && opts.output != "json" {
		return fmt.Errorf(
			"%s: unknown output format %q",
			errCtx, opts.output,
		)
	}

	cfg := &config.Config{}

	if opts.configPath != "" {
		cfg, err = config.Load(opts.configPath)
		if err != nil {
			return fmt.Errorf("%s: %w", errCtx, err)
		}
	}

	resolver, err := access.NewResolver(cfg.AccessIntegrations())
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	wf, err := prer.New(prer.Config{
		Resolver:  resolver,
		Transport: bitbucket.NewHTTPTransport(nil),
		Pusher:    git.NewRepo(),
		Defaults: prer.Defaults{
			AuthorName:    cfg.Scaffolder.DefaultAuthor.Name,
			AuthorEmail:   cfg.Scaffolder.DefaultAuthor.Email,
			CommitMessage: cfg.Scaffolder.DefaultCommitMessage,
			TargetBranch:  cfg.Scaffolder.DefaultTargetBranch,
		},
	})
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	token := opts.token
	if token == "" {
		token = os.Getenv(tokenEnv)
	}

	res, err := wf.Run(ctx, prer.Input{
		RepoURL:       opts.repoURL,
		Title:         opts.title,
		Description:   opts.description,
		TargetBranch:  opts.targetBranch,
		SourceBranch:  opts.sourceBranch,
		Dir:           opts.dir,
		CommitMessage: opts.commitMessage,
		Author: git.Author{
			Name:  opts.authorName,
			Email: opts.authorEmail,
		},
		Token:  token,
		DryRun: opts.dryRun,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if err := printResult(out, opts.output, res); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}

// result is the JSON output document.
type result struct {
	PullRequestURL      string `json:"pullRequestUrl,omitempty"`
	PullRequestID       int64  `json:"pullRequestId,omitempty"`
	SourceBranchCreated bool   `json:"sourceBranchCreated"`
	DryRun              bool   `json:"dryRun,omitempty"`
}

func printResult(
	out io.Writer,
	format string,
	res *prer.Result,
) error {
	if format == "json" {
		raw, err := json.Marshal(result{
			PullRequestURL:      res.PullRequestURL,
			PullRequestID:       res.PullRequestID,
			SourceBranchCreated: res.SourceBranchCreated,
			DryRun:              res.DryRun,
		})
		if err != nil {
			return fmt.Errorf("encoding result: %w", err)
		}

		_, err = fmt.Fprintln(out, string(raw))

		return err
	}

	if res.DryRun {
		_, err := fmt.Fprintf(
			out,
			"dry run: source branch would be created: %t\n",
			res.SourceBranchCreated,
		)

		return err
	}

	_, err := fmt.Fprintln(out, res.PullRequestURL)

	return err
}

func newLogger(
	w io.Writer,
	level string,
	format string,
) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText(
		[]byte(strings.ToUpper(level)),
	); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	hopts := &slog.HandlerOptions{Level: lvl}

	switch format {
	case "text":
		return slog.New(slog.NewTextHandler(w, hopts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, hopts)), nil
	default:
		return nil, fmt.Errorf(
			"unknown log format %q", format,
		)
	}
}
