// Package commitmsg selects the commit message for a pull request run from
// an explicit message, the pull request description and a configured default,
// then expands {{PLACEHOLDER}} references so a shared default can mention the
// title, branches, project and repo of the run.
package commitmsg
