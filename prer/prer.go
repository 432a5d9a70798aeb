package prer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/byte4ever/bbpr/access"
	"github.com/byte4ever/bbpr/bitbucket"
	"github.com/byte4ever/bbpr/commitmsg"
	"github.com/byte4ever/bbpr/git"
)

const (
	// DefaultTargetBranch is used when neither the
	// input nor Defaults name a target branch.
	DefaultTargetBranch = "master"

	// DefaultAuthorName is the last resort commit
	// author name.
	DefaultAuthorName = "Scaffolder"

	// DefaultAuthorEmail is the last resort commit
	// author email.
	DefaultAuthorEmail = "scaffolder@backstage.io"
)

// ErrInvalidInput is returned when a required input is
// missing or inconsistent.
var ErrInvalidInput = errors.New("invalid input")

// AccessResolver resolves a repository location and an
// optional per-call token. *access.Resolver implements
// it.
type AccessResolver interface {
	Resolve(
		repoURL string,
		token string,
	) (*access.Context, error)
}

// Defaults are the fallbacks used when an Input leaves
// a field empty.
type Defaults struct {
	AuthorName    string
	AuthorEmail   string
	CommitMessage string
	TargetBranch  string
}

// Config holds the collaborators of a Workflow. Use a
// Config struct instead of many arguments.
type Config struct {
	// Resolver maps repository URLs to access.
	Resolver AccessResolver

	// Transport carries REST calls. A client is built
	// on it for every run.
	Transport bitbucket.Transport

	// Pusher commits and pushes the working
	// directory.
	Pusher git.Pusher

	// Defaults fill in omitted inputs.
	Defaults Defaults
}

// Input is one pull request request.
type Input struct {
	// RepoURL locates the repository (required).
	RepoURL string

	// Title is the pull request title (required).
	Title string

	// Description is the pull request description.
	// It is also the commit message when
	// CommitMessage is empty.
	Description string

	// TargetBranch is the branch to merge into.
	TargetBranch string

	// SourceBranch carries the changes (required).
	SourceBranch string

	// Dir is the working directory holding the
	// changes (required unless DryRun).
	Dir string

	// CommitMessage overrides the commit message.
	CommitMessage string

	// Author overrides the configured commit author.
	Author git.Author

	// Token overrides the configured credential for
	// this run only.
	Token string

	// DryRun stops after the branch lookups and
	// performs no write call.
	DryRun bool
}

// Result describes a finished run.
type Result struct {
	// PullRequestURL is the self link of the new pull
	// request. Empty on a dry run.
	PullRequestURL string

	// PullRequestID is the server id of the new pull
	// request.
	PullRequestID int64

	// SourceBranchCreated is true when the run created
	// (or, on a dry run, would create) the source
	// branch.
	SourceBranchCreated bool

	// DryRun echoes Input.DryRun.
	DryRun bool
}

// Workflow runs pull request creations. It keeps no
// state between runs.
type Workflow struct {
	resolver  AccessResolver
	transport bitbucket.Transport
	pusher    git.Pusher
	defaults  Defaults
}

// New validates cfg and returns a Workflow.
func New(cfg Config) (*Workflow, error) {
	const errCtx = "creating workflow"

	if cfg.Resolver == nil {
		return nil, fmt.Errorf(
			"%s: resolver must be set", errCtx,
		)
	}

	if cfg.Transport == nil {
		return nil, fmt.Errorf(
			"%s: transport must be set", errCtx,
		)
	}

	if cfg.Pusher == nil {
		return nil, fmt.Errorf(
			"%s: pusher must be set", errCtx,
		)
	}

	return &Workflow{
		resolver:  cfg.Resolver,
		transport: cfg.Transport,
		pusher:    cfg.Pusher,
		defaults:  cfg.Defaults,
	}, nil
}

// Run executes the steps in strict order: resolve
// access, ensure the source branch, commit and push,
// open the pull request. The first failure aborts the
// run. Nothing is rolled back: a failure after the
// push leaves the remote branch updated.
func (w *Workflow) Run(
	ctx context.Context,
	in Input,
) (*Result, error) {
	const errCtx = "creating pull request"

	target := firstNonBlank(
		in.TargetBranch,
		w.defaults.TargetBranch,
		DefaultTargetBranch,
	)

	if err := validate(in, target); err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	// Step 1: Resolve access.
	ac, err := w.resolver.Resolve(in.RepoURL, in.Token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	client, err := bitbucket.NewClient(
		w.transport, ac.APIBaseURL, ac.Authorization,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	slog.Info(
		"attempting to find branches",
		"project", ac.Project,
		"repo", ac.Repo,
		"target_branch", target,
		"source_branch", in.SourceBranch,
	)

	if in.DryRun {
		return dryRun(ctx, client, ac, target, in)
	}

	// Step 2: Ensure the source branch exists.
	refs, err := EnsureSourceBranch(
		ctx, client,
		ac.Project, ac.Repo,
		target, in.SourceBranch,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	// Step 3: Commit and push the working directory.
	msg := commitmsg.Generate(
		commitmsg.Select(
			in.CommitMessage,
			in.Description,
			w.defaults.CommitMessage,
		),
		commitmsg.Vars{
			Title:        in.Title,
			SourceBranch: in.SourceBranch,
			TargetBranch: target,
			Project:      ac.Project,
			Repo:         ac.Repo,
		},
	)

	if err := w.pusher.CommitAndPush(ctx, git.PushOptions{
		Dir:       in.Dir,
		RemoteURL: ac.RemoteURL(),
		Branch:    in.SourceBranch,
		Auth:      pushAuth(ac.Credentials),
		Message:   msg,
		Author:    w.author(in.Author),
	}); err != nil {
		return nil, fmt.Errorf(
			"%s: push %s: %w",
			errCtx, in.SourceBranch, err,
		)
	}

	// Step 4: Open the pull request.
	pr, err := client.CreatePullRequest(
		ctx,
		ac.Project, ac.Repo,
		in.Title, in.Description,
		refs.ToRef, refs.FromRef,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	return &Result{
		PullRequestURL:      pr.URL,
		PullRequestID:       pr.ID,
		SourceBranchCreated: refs.Created,
	}, nil
}

// dryRun performs the read-only part of the run.
func dryRun(
	ctx context.Context,
	api BranchAPI,
	ac *access.Context,
	target string,
	in Input,
) (*Result, error) {
	const errCtx = "dry run"

	toRef, found, err := api.FindBranch(
		ctx, ac.Project, ac.Repo, target,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	if !found {
		return nil, fmt.Errorf(
			"%s: %w: %s in %s/%s",
			errCtx, ErrTargetBranchNotFound,
			target, ac.Project, ac.Repo,
		)
	}

	_, found, err = api.FindBranch(
		ctx, ac.Project, ac.Repo, in.SourceBranch,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	slog.Info(
		"dry run: skipping branch creation, push and "+
			"pull request",
		"source_exists", found,
		"start_point", toRef.LatestCommit,
		"remote", ac.RemoteURL(),
	)

	return &Result{
		SourceBranchCreated: !found,
		DryRun:              true,
	}, nil
}

func validate(in Input, target string) error {
	switch {
	case in.RepoURL == "":
		return fmt.Errorf(
			"%w: repo url is required", ErrInvalidInput,
		)
	case in.Title == "":
		return fmt.Errorf(
			"%w: title is required", ErrInvalidInput,
		)
	case in.SourceBranch == "":
		return fmt.Errorf(
			"%w: source branch is required",
			ErrInvalidInput,
		)
	case in.SourceBranch == target:
		return fmt.Errorf(
			"%w: source and target branch are both %q",
			ErrInvalidInput, target,
		)
	case in.Dir == "" && !in.DryRun:
		return fmt.Errorf(
			"%w: working directory is required",
			ErrInvalidInput,
		)
	}

	return nil
}

// author fills empty fields of a from the defaults.
func (w *Workflow) author(a git.Author) git.Author {
	return git.Author{
		Name: firstNonBlank(
			a.Name, w.defaults.AuthorName, DefaultAuthorName,
		),
		Email: firstNonBlank(
			a.Email, w.defaults.AuthorEmail, DefaultAuthorEmail,
		),
	}
}

func pushAuth(c access.Credentials) git.Auth {
	if c.IsToken() {
		return git.Auth{Token: c.Token}
	}

	return git.Auth{
		Username: c.Username,
		Password: c.Password,
	}
}

// firstNonBlank returns the first value that is not
// empty or whitespace, or "".
func firstNonBlank(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}

	return ""
}
