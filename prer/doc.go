// Package prer opens Bitbucket Server pull requests from local changes.
//
// Workflow.Run resolves access for the repository URL, calls
// EnsureSourceBranch so the source branch exists (creating it at the target
// branch's latest commit when it does not), commits and pushes the working
// directory onto the source branch through a git.Pusher, and finally opens
// the pull request. Steps run strictly in sequence; the first failure aborts
// the run and nothing already done is rolled back.
//
// EnsureSourceBranch is safe to repeat: an existing source branch is reused
// untouched, so a failed run can be retried up to the push step.
package prer
