package git

import "context"

// Pattern: Strategy -- swap the commit/push mechanism
// without changing the pull request workflow.

// Author is a commit identity.
type Author struct {
	Name  string
	Email string
}

// Auth is the credential used for the push. Token and
// Username/Password are mutually exclusive; the zero
// value means anonymous.
type Auth struct {
	Token    string
	Username string
	Password string
}

// PushOptions describes one commit-and-push.
type PushOptions struct {
	// Dir is the working directory holding the
	// changes.
	Dir string
	// RemoteURL is the HTTP clone URL.
	RemoteURL string
	// Branch is the remote branch receiving the
	// commit. It must already exist remotely or be
	// absent entirely.
	Branch string
	// Auth authenticates the fetch and push.
	Auth Auth
	// Message is the commit message.
	Message string
	// Author is the commit author and committer.
	Author Author
}

// Pusher commits a working directory onto a remote
// branch.
type Pusher interface {
	CommitAndPush(
		ctx context.Context,
		opts PushOptions,
	) error
}

// PusherFunc adapts a plain function to the Pusher
// interface.
type PusherFunc func(
	ctx context.Context,
	opts PushOptions,
) error

// CommitAndPush delegates to the wrapped function.
func (f PusherFunc) CommitAndPush(
	ctx context.Context,
	opts PushOptions,
) error {
	return f(ctx, opts)
}
