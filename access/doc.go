// Package access turns a repository location into everything needed to talk
// to a Bitbucket Server instance: project, repo, host, REST base URL, the
// Authorization header and the credential used for git pushes.
//
// Repository locations are accepted in scaffolder form
// ("host?project=P&repo=R"), as browse URLs
// ("https://host/projects/P/repos/R/browse") and as HTTP clone URLs
// ("https://host/scm/P/R.git").
//
// Credentials are chosen in this order: a per-call token, the integration's
// token, then the integration's username and password.
package access
