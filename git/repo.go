package git

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
)

// DefaultRemoteName is the remote used when Repo has
// none set.
const DefaultRemoteName = "origin"

const (
	gitDirName    = ".git"
	scratchPrefix = "bbpr-push-"
)

// Repo is the go-git backed Pusher. Commits are built
// in a scratch repository holding the remote branch
// tip; the source directory is only read.
type Repo struct {
	// RemoteName names the remote in the scratch
	// repository. Empty means DefaultRemoteName.
	RemoteName string

	// TempDir is the parent of scratch repositories.
	// Empty means the system temporary directory.
	TempDir string
}

// NewRepo returns a Repo using DefaultRemoteName.
func NewRepo() *Repo {
	return &Repo{RemoteName: DefaultRemoteName}
}

// CommitAndPush checks out the remote tip of
// opts.Branch in a scratch repository, copies opts.Dir
// over it, commits and pushes the branch. Files of the
// tip absent from opts.Dir are kept. When the branch
// does not exist remotely the commit has no parent. A
// commit that changes nothing is neither made nor
// pushed.
func (r *Repo) CommitAndPush(
	ctx context.Context,
	opts PushOptions,
) error {
	const errCtx = "committing and pushing"

	if err := opts.validate(); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	fi, err := os.Stat(opts.Dir)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if !fi.IsDir() {
		return fmt.Errorf(
			"%s: %s is not a directory",
			errCtx, opts.Dir,
		)
	}

	scratch, err := os.MkdirTemp(r.TempDir, scratchPrefix)
	if err != nil {
		return fmt.Errorf(
			"%s: scratch dir: %w", errCtx, err,
		)
	}

	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			slog.Warn(
				"cannot remove scratch repository",
				"dir", scratch,
				"error", err,
			)
		}
	}()

	remote := r.remoteName()
	auth := opts.Auth.method()

	repo, err := gogit.PlainInit(scratch, false)
	if err != nil {
		return fmt.Errorf("%s: init: %w", errCtx, err)
	}

	if _, err := repo.CreateRemote(&config.RemoteConfig{
		Name: remote,
		URLs: []string{opts.RemoteURL},
	}); err != nil {
		return fmt.Errorf(
			"%s: create remote %s: %w",
			errCtx, remote, err,
		)
	}

	tip, err := fetchTip(
		ctx, repo, remote, opts.Branch, auth,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	wt, err := checkout(repo, opts.Branch, tip)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if err := overlay(
		osfs.New(opts.Dir), wt.Filesystem,
	); err != nil {
		return fmt.Errorf(
			"%s: copy %s: %w", errCtx, opts.Dir, err,
		)
	}

	committed, err := commit(wt, opts)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if !committed {
		slog.Info(
			"no change against branch tip, nothing to push",
			"branch", opts.Branch,
		)

		return nil
	}

	branchRef := plumbing.NewBranchReferenceName(
		opts.Branch,
	)

	refSpec := config.RefSpec(
		branchRef.String() + ":" + branchRef.String(),
	)

	err = repo.PushContext(ctx, &gogit.PushOptions{
		RemoteName: remote,
		RefSpecs:   []config.RefSpec{refSpec},
		Auth:       auth,
	})
	if err != nil &&
		!errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return fmt.Errorf(
			"%s: push %s: %w",
			errCtx, opts.Branch, err,
		)
	}

	slog.Info(
		"pushed branch",
		"branch", opts.Branch,
		"remote", opts.RemoteURL,
	)

	return nil
}

func (r *Repo) remoteName() string {
	if r.RemoteName == "" {
		return DefaultRemoteName
	}

	return r.RemoteName
}

func (o PushOptions) validate() error {
	switch {
	case o.Dir == "":
		return errors.New("dir must be set")
	case o.RemoteURL == "":
		return errors.New("remote url must be set")
	case o.Branch == "":
		return errors.New("branch must be set")
	}

	return nil
}

// method maps the credential to a go-git auth method.
// A nil result means anonymous access.
func (a Auth) method() transport.AuthMethod {
	switch {
	case a.Token != "":
		return &http.TokenAuth{Token: a.Token}
	case a.Username != "":
		return &http.BasicAuth{
			Username: a.Username,
			Password: a.Password,
		}
	default:
		return nil
	}
}

// fetchTip fetches branch and returns its remote tip,
// or the zero hash when the remote has no such branch.
func fetchTip(
	ctx context.Context,
	repo *gogit.Repository,
	remote string,
	branch string,
	auth transport.AuthMethod,
) (plumbing.Hash, error) {
	remoteRef := plumbing.NewRemoteReferenceName(
		remote, branch,
	)

	refSpec := config.RefSpec(
		"+" + plumbing.NewBranchReferenceName(branch).String() +
			":" + remoteRef.String(),
	)

	err := repo.FetchContext(ctx, &gogit.FetchOptions{
		RemoteName: remote,
		RefSpecs:   []config.RefSpec{refSpec},
		Auth:       auth,
		Tags:       gogit.NoTags,
	})

	switch {
	case err == nil,
		errors.Is(err, gogit.NoErrAlreadyUpToDate):
	case errors.Is(err, gogit.NoMatchingRefSpecError{}),
		errors.Is(err, transport.ErrEmptyRemoteRepository):
		slog.Info(
			"branch not on remote, committing without parent",
			"branch", branch,
		)

		return plumbing.ZeroHash, nil
	default:
		return plumbing.ZeroHash, fmt.Errorf(
			"fetch %s: %w", branch, err,
		)
	}

	ref, err := repo.Reference(remoteRef, true)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf(
			"resolve %s: %w", remoteRef, err,
		)
	}

	return ref.Hash(), nil
}

// checkout points HEAD at branch and, when tip is set,
// moves the branch there and checks its files out.
func checkout(
	repo *gogit.Repository,
	branch string,
	tip plumbing.Hash,
) (*gogit.Worktree, error) {
	branchRef := plumbing.NewBranchReferenceName(branch)

	if err := repo.Storer.SetReference(
		plumbing.NewSymbolicReference(
			plumbing.HEAD, branchRef,
		),
	); err != nil {
		return nil, fmt.Errorf("set HEAD: %w", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("worktree: %w", err)
	}

	if tip.IsZero() {
		return wt, nil
	}

	if err := repo.Storer.SetReference(
		plumbing.NewHashReference(branchRef, tip),
	); err != nil {
		return nil, fmt.Errorf("set branch: %w", err)
	}

	if err := wt.Reset(&gogit.ResetOptions{
		Commit: tip,
		Mode:   gogit.HardReset,
	}); err != nil {
		return nil, fmt.Errorf(
			"check out %s: %w", tip, err,
		)
	}

	return wt, nil
}

// overlay copies every entry of src into dst, replacing
// entries present in both. Entries named .git are
// skipped, so a source that is itself a repository
// contributes only its files.
func overlay(src billy.Filesystem, dst billy.Filesystem) error {
	return util.Walk(
		src, ".",
		func(p string, fi os.FileInfo, err error) error {
			if err != nil {
				return err
			}

			if p == "." {
				return nil
			}

			if fi.Name() == gitDirName {
				if fi.IsDir() {
					return filepath.SkipDir
				}

				return nil
			}

			switch {
			case fi.IsDir():
				return mkdir(dst, p)
			case fi.Mode()&os.ModeSymlink != 0:
				return copyLink(src, dst, p)
			case fi.Mode().IsRegular():
				return copyFile(src, dst, p, fi.Mode().Perm())
			default:
				slog.Debug("skipping special file", "path", p)

				return nil
			}
		},
	)
}

func mkdir(dst billy.Filesystem, p string) error {
	if fi, err := dst.Lstat(p); err == nil && !fi.IsDir() {
		if err := removeEntry(dst, p); err != nil {
			return err
		}
	}

	if err := dst.MkdirAll(p, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", p, err)
	}

	return nil
}

// removeEntry removes whatever dst holds at p.
func removeEntry(dst billy.Filesystem, p string) error {
	if _, err := dst.Lstat(p); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	if err := util.RemoveAll(dst, p); err != nil {
		return fmt.Errorf("replace %s: %w", p, err)
	}

	return nil
}

func copyLink(
	src billy.Filesystem,
	dst billy.Filesystem,
	p string,
) error {
	target, err := src.Readlink(p)
	if err != nil {
		return fmt.Errorf("readlink %s: %w", p, err)
	}

	if err := removeEntry(dst, p); err != nil {
		return err
	}

	if err := dst.Symlink(target, p); err != nil {
		return fmt.Errorf("symlink %s: %w", p, err)
	}

	return nil
}

func copyFile(
	src billy.Filesystem,
	dst billy.Filesystem,
	p string,
	perm os.FileMode,
) (err error) {
	if fi, lerr := dst.Lstat(p); lerr == nil &&
		!fi.Mode().IsRegular() {
		if err := removeEntry(dst, p); err != nil {
			return err
		}
	}

	in, err := src.Open(p)
	if err != nil {
		return fmt.Errorf("open %s: %w", p, err)
	}

	defer in.Close() //nolint:errcheck

	out, err := dst.OpenFile(
		p, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm,
	)
	if err != nil {
		return fmt.Errorf("create %s: %w", p, err)
	}

	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", p, cerr)
		}
	}()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy %s: %w", p, err)
	}

	return nil
}

// commit stages everything and commits. Returns false
// when there was nothing to commit.
func commit(
	wt *gogit.Worktree,
	opts PushOptions,
) (bool, error) {
	if err := wt.AddWithOptions(&gogit.AddOptions{
		All: true,
	}); err != nil {
		return false, fmt.Errorf("stage: %w", err)
	}

	st, err := wt.Status()
	if err != nil {
		return false, fmt.Errorf("status: %w", err)
	}

	if st.IsClean() {
		return false, nil
	}

	sig := &object.Signature{
		Name:  opts.Author.Name,
		Email: opts.Author.Email,
		When:  time.Now(),
	}

	hash, err := wt.Commit(opts.Message, &gogit.CommitOptions{
		Author:    sig,
		Committer: sig,
	})
	if err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}

	slog.Info(
		"committed changes",
		"commit", hash.String(),
		"branch", opts.Branch,
	)

	return true, nil
}
