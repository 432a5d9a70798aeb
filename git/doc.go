// Package git commits a local working directory onto a remote branch.
//
// Pusher is the capability the pull request workflow consumes. Repo is the
// go-git implementation: it fetches the branch tip into a scratch repository,
// copies the working directory over the checked out files, commits with the
// given author and pushes the branch. Files of the tip that the working
// directory lacks are kept, and the working directory itself is never
// written to. PusherFunc lets plain functions satisfy the interface.
package git
