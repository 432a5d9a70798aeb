package access

import (
	"fmt"
	"net/url"
	"strings"
)

// Location identifies a repository on a host.
type Location struct {
	Host    string
	Project string
	Repo    string
}

// ParseRepoURL extracts host, project and repo from
// repoURL. Query parameters win over path segments.
func ParseRepoURL(repoURL string) (Location, error) {
	const errCtx = "parsing repository url"

	raw := strings.TrimSpace(repoURL)
	if raw == "" {
		return Location{}, fmt.Errorf(
			"%s: %w: empty", errCtx,
			ErrInvalidRepositoryURL,
		)
	}

	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf(
			"%s: %w: %w", errCtx,
			ErrInvalidRepositoryURL, err,
		)
	}

	loc := Location{Host: u.Host}
	if loc.Host == "" {
		return Location{}, fmt.Errorf(
			"%s: %w: missing host in %q", errCtx,
			ErrInvalidRepositoryURL, repoURL,
		)
	}

	loc.Project, loc.Repo = fromPath(u.Path)

	q := u.Query()
	if p := q.Get("project"); p != "" {
		loc.Project = p
	}

	if r := q.Get("repo"); r != "" {
		loc.Repo = r
	}

	if loc.Project == "" {
		return Location{}, fmt.Errorf(
			"%s: %w: missing project in %q", errCtx,
			ErrInvalidRepositoryURL, repoURL,
		)
	}

	if loc.Repo == "" {
		return Location{}, fmt.Errorf(
			"%s: %w: missing repo in %q", errCtx,
			ErrInvalidRepositoryURL, repoURL,
		)
	}

	return loc, nil
}

// fromPath understands "/projects/P/repos/R/..." and
// "/scm/P/R.git".
func fromPath(p string) (project string, repo string) {
	seg := strings.Split(strings.Trim(p, "/"), "/")

	for i := 0; i+1 < len(seg); i++ {
		switch strings.ToLower(seg[i]) {
		case "projects":
			project = seg[i+1]
			if i+3 < len(seg) &&
				strings.EqualFold(seg[i+2], "repos") {
				repo = seg[i+3]
			}

			return project, repo
		case "scm":
			project = seg[i+1]
			if i+2 < len(seg) {
				repo = strings.TrimSuffix(
					seg[i+2], ".git",
				)
			}

			return project, repo
		}
	}

	return "", ""
}
