package prer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/byte4ever/bbpr/bitbucket"
)

// ErrTargetBranchNotFound is returned when the branch a
// pull request should merge into does not exist.
var ErrTargetBranchNotFound = errors.New("target branch not found")

// BranchAPI looks up and creates branches.
// *bitbucket.Client implements it.
type BranchAPI interface {
	FindBranch(
		ctx context.Context,
		project string,
		repo string,
		branchName string,
	) (*bitbucket.BranchRef, bool, error)
	CreateBranch(
		ctx context.Context,
		project string,
		repo string,
		branchName string,
		startPoint string,
	) (*bitbucket.BranchRef, error)
}

// Refs are the two ends of a pull request.
type Refs struct {
	// ToRef is the target branch.
	ToRef *bitbucket.BranchRef
	// FromRef is the source branch.
	FromRef *bitbucket.BranchRef
	// Created is true when this call created the
	// source branch.
	Created bool
}

// EnsureSourceBranch guarantees the source branch
// exists. An existing source branch is returned as is,
// without moving its tip. A missing one is created at
// the target branch's latest commit. The target branch
// must exist.
//
// Lookup and creation are not atomic. When creation is
// rejected with 409 Conflict the source branch is
// looked up once more and used if it now exists.
func EnsureSourceBranch(
	ctx context.Context,
	api BranchAPI,
	project string,
	repo string,
	targetBranch string,
	sourceBranch string,
) (*Refs, error) {
	const errCtx = "ensuring source branch"

	toRef, found, err := api.FindBranch(
		ctx, project, repo, targetBranch,
	)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: find target %s: %w",
			errCtx, targetBranch, err,
		)
	}

	if !found {
		return nil, fmt.Errorf(
			"%s: %w: %s in %s/%s",
			errCtx, ErrTargetBranchNotFound,
			targetBranch, project, repo,
		)
	}

	fromRef, found, err := api.FindBranch(
		ctx, project, repo, sourceBranch,
	)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: find source %s: %w",
			errCtx, sourceBranch, err,
		)
	}

	if found {
		return &Refs{ToRef: toRef, FromRef: fromRef}, nil
	}

	slog.Info(
		"source branch not found, creating it",
		"branch", sourceBranch,
		"latest_commit", toRef.LatestCommit,
	)

	fromRef, err = api.CreateBranch(
		ctx, project, repo,
		sourceBranch, toRef.LatestCommit,
	)
	if err == nil {
		return &Refs{
			ToRef:   toRef,
			FromRef: fromRef,
			Created: true,
		}, nil
	}

	if bitbucket.StatusOf(err) != http.StatusConflict {
		return nil, fmt.Errorf(
			"%s: create %s: %w",
			errCtx, sourceBranch, err,
		)
	}

	existing, found, findErr := api.FindBranch(
		ctx, project, repo, sourceBranch,
	)
	if findErr != nil {
		return nil, fmt.Errorf(
			"%s: create %s: %w",
			errCtx, sourceBranch,
			errors.Join(
				err,
				fmt.Errorf("re-lookup after conflict: %w", findErr),
			),
		)
	}

	if !found {
		return nil, fmt.Errorf(
			"%s: create %s: %w",
			errCtx, sourceBranch, err,
		)
	}

	slog.Info(
		"source branch created concurrently, reusing it",
		"branch", sourceBranch,
	)

	return &Refs{ToRef: toRef, FromRef: existing}, nil
}
