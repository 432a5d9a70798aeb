package access

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"github.com/valyala/fasttemplate"
)

const (
	// DefaultAPIBaseURLTemplate is used when an
	// integration does not set APIBaseURL.
	DefaultAPIBaseURLTemplate = "https://{host}/rest/api/1.0"

	// RemoteURLTemplate is the HTTP clone URL layout.
	RemoteURLTemplate = "https://{host}/scm/{project}/{repo}.git"
)

// Integration is one configured Bitbucket Server host.
type Integration struct {
	Host       string
	APIBaseURL string
	Token      string
	Username   string
	Password   string
}

// Credentials is either a token or a username and
// password, never both.
type Credentials struct {
	Token    string
	Username string
	Password string
}

// IsToken reports whether the credential is a token.
func (c Credentials) IsToken() bool {
	return c.Token != ""
}

// authorization returns the Authorization header value,
// or "" when the credential is unusable.
func (c Credentials) authorization() string {
	if c.Token != "" {
		return "Bearer " + c.Token
	}

	if c.Username != "" && c.Password != "" {
		return "Basic " + base64.StdEncoding.EncodeToString(
			[]byte(c.Username+":"+c.Password),
		)
	}

	return ""
}

// Context is the resolved access for one workflow run.
// It is not modified after Resolve returns it.
type Context struct {
	Project       string
	Repo          string
	Host          string
	APIBaseURL    string
	Authorization string
	Credentials   Credentials
}

// RemoteURL returns the HTTP clone URL of the
// repository.
func (c *Context) RemoteURL() string {
	return fasttemplate.ExecuteString(
		RemoteURLTemplate, "{", "}",
		map[string]any{
			"host":    c.Host,
			"project": c.Project,
			"repo":    c.Repo,
		},
	)
}

// Resolver maps repository locations to a Context using
// a fixed set of integrations.
type Resolver struct {
	byHost map[string]Integration
}

// NewResolver indexes integrations by host and fills
// in default API base URLs. Hosts are compared case
// insensitively.
func NewResolver(
	integrations []Integration,
) (*Resolver, error) {
	const errCtx = "creating access resolver"

	byHost := make(map[string]Integration, len(integrations))

	for _, in := range integrations {
		host := strings.ToLower(strings.TrimSpace(in.Host))
		if host == "" {
			return nil, fmt.Errorf(
				"%s: integration host must be set",
				errCtx,
			)
		}

		if _, dup := byHost[host]; dup {
			return nil, fmt.Errorf(
				"%s: duplicate integration for host %q",
				errCtx, host,
			)
		}

		if in.APIBaseURL == "" {
			in.APIBaseURL = fasttemplate.ExecuteString(
				DefaultAPIBaseURLTemplate, "{", "}",
				map[string]any{"host": in.Host},
			)
		}

		if _, err := url.Parse(in.APIBaseURL); err != nil {
			return nil, fmt.Errorf(
				"%s: api base url for %q: %w",
				errCtx, host, err,
			)
		}

		byHost[host] = in
	}

	return &Resolver{byHost: byHost}, nil
}

// Resolve parses repoURL and builds its Context. A
// non-empty token overrides the configured credential
// for this call only.
func (r *Resolver) Resolve(
	repoURL string,
	token string,
) (*Context, error) {
	const errCtx = "resolving access"

	loc, err := ParseRepoURL(repoURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	in, ok := r.byHost[strings.ToLower(loc.Host)]
	if !ok {
		return nil, fmt.Errorf(
			"%s: %w for host %s, please check your "+
				"integrations config",
			errCtx, ErrMissingIntegrationConfig, loc.Host,
		)
	}

	creds := Credentials{
		Username: in.Username,
		Password: in.Password,
	}

	switch {
	case token != "":
		creds = Credentials{Token: token}
	case in.Token != "":
		creds = Credentials{Token: in.Token}
	}

	authz := creds.authorization()
	if authz == "" {
		return nil, fmt.Errorf(
			"%s: %w for %s, add a token or a "+
				"username and password to the "+
				"integration config, or pass a token",
			errCtx, ErrMissingAuthorization, in.Host,
		)
	}

	return &Context{
		Project:       loc.Project,
		Repo:          loc.Repo,
		Host:          loc.Host,
		APIBaseURL:    in.APIBaseURL,
		Authorization: authz,
		Credentials:   creds,
	}, nil
}
