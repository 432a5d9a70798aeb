package bitbucket

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	json "github.com/goccy/go-json"
)

const (
	opFindBranch        = "get branches"
	opCreateBranch      = "create branch"
	opCreatePullRequest = "create pull requests"
)

// Client issues branch and pull request calls against
// one Bitbucket Server instance with one credential.
// Each method performs a single attempt.
type Client struct {
	transport     Transport
	apiBaseURL    string
	authorization string
}

// NewClient validates its arguments and returns a
// Client. apiBaseURL is the REST root (e.g.
// "https://bb.example.com/rest/api/1.0") and
// authorization the complete Authorization header
// value.
func NewClient(
	transport Transport,
	apiBaseURL string,
	authorization string,
) (*Client, error) {
	const errCtx = "creating bitbucket client"

	if transport == nil {
		return nil, fmt.Errorf(
			"%s: transport must be set", errCtx,
		)
	}

	if apiBaseURL == "" {
		return nil, fmt.Errorf(
			"%s: api base url must be set", errCtx,
		)
	}

	if authorization == "" {
		return nil, fmt.Errorf(
			"%s: authorization must be set", errCtx,
		)
	}

	return &Client{
		transport:     transport,
		apiBaseURL:    strings.TrimSuffix(apiBaseURL, "/"),
		authorization: authorization,
	}, nil
}

// FindBranch looks up branchName. The server filter is
// a boosted fuzzy match, so only an entry whose display
// id equals branchName counts. found is false when no
// entry matches exactly.
func (c *Client) FindBranch(
	ctx context.Context,
	project string,
	repo string,
	branchName string,
) (ref *BranchRef, found bool, err error) {
	const errCtx = "finding branch"

	u := c.repoURL(project, repo, "branches") +
		"?boostMatches=true&filterText=" +
		url.QueryEscape(branchName)

	resp, err := c.transport.Get(ctx, u, c.header())
	if err != nil {
		return nil, false, fmt.Errorf(
			"%s: %w", errCtx,
			&RemoteCallError{Op: opFindBranch, Err: err},
		)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf(
			"%s: %w", errCtx,
			statusError(opFindBranch, resp),
		)
	}

	var page branchPage
	if err := resp.JSON(&page); err != nil {
		return nil, false, fmt.Errorf(
			"%s: %w: %w",
			errCtx, ErrMalformedResponse, err,
		)
	}

	for i := range page.Values {
		if page.Values[i].DisplayID == branchName {
			return &page.Values[i], true, nil
		}
	}

	if !page.IsLastPage {
		slog.Debug(
			"no exact match on first branch page",
			"branch", branchName,
			"candidates", len(page.Values),
		)
	}

	return nil, false, nil
}

// CreateBranch creates branchName at startPoint and
// returns the server's view of the new branch. Any
// status other than 200, including the one reported for
// an existing branch, is a failure.
func (c *Client) CreateBranch(
	ctx context.Context,
	project string,
	repo string,
	branchName string,
	startPoint string,
) (*BranchRef, error) {
	const errCtx = "creating branch"

	payload, err := json.Marshal(&createBranchRequest{
		Name:       branchName,
		StartPoint: startPoint,
	})
	if err != nil {
		return nil, fmt.Errorf(
			"%s: marshal request: %w", errCtx, err,
		)
	}

	resp, err := c.transport.Post(
		ctx,
		c.repoURL(project, repo, "branches"),
		c.header(),
		payload,
	)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: %w", errCtx,
			&RemoteCallError{Op: opCreateBranch, Err: err},
		)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf(
			"%s: %w", errCtx,
			statusError(opCreateBranch, resp),
		)
	}

	var ref BranchRef
	if err := resp.JSON(&ref); err != nil {
		return nil, fmt.Errorf(
			"%s: %w: %w",
			errCtx, ErrMalformedResponse, err,
		)
	}

	slog.Info(
		"created branch",
		"branch", ref.DisplayID,
		"start_point", startPoint,
	)

	return &ref, nil
}

// CreatePullRequest opens a pull request from fromRef
// into toRef. The request always carries the OPEN
// state: open, not closed, not locked. The refs are
// embedded as returned by the server.
func (c *Client) CreatePullRequest(
	ctx context.Context,
	project string,
	repo string,
	title string,
	description string,
	toRef *BranchRef,
	fromRef *BranchRef,
) (*PullRequestResult, error) {
	const errCtx = "creating pull request"

	if toRef == nil || fromRef == nil {
		return nil, fmt.Errorf(
			"%s: both refs must be set", errCtx,
		)
	}

	payload, err := json.Marshal(&pullRequest{
		Title:       title,
		Description: description,
		State:       "OPEN",
		Open:        true,
		Closed:      false,
		Locked:      false,
		ToRef:       toRef,
		FromRef:     fromRef,
	})
	if err != nil {
		return nil, fmt.Errorf(
			"%s: marshal request: %w", errCtx, err,
		)
	}

	resp, err := c.transport.Post(
		ctx,
		c.repoURL(project, repo, "pull-requests"),
		c.header(),
		payload,
	)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: %w", errCtx,
			&RemoteCallError{
				Op:  opCreatePullRequest,
				Err: err,
			},
		)
	}

	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf(
			"%s: %w", errCtx,
			statusError(opCreatePullRequest, resp),
		)
	}

	var pr pullRequestResponse
	if err := resp.JSON(&pr); err != nil {
		return nil, fmt.Errorf(
			"%s: %w: %w",
			errCtx, ErrMalformedResponse, err,
		)
	}

	if pr.Links == nil ||
		len(pr.Links.Self) == 0 ||
		pr.Links.Self[0].Href == "" {
		return nil, fmt.Errorf(
			"%s: %w: missing self link",
			errCtx, ErrMalformedResponse,
		)
	}

	slog.Info(
		"created pull request",
		"id", pr.ID,
		"url", pr.Links.Self[0].Href,
	)

	return &PullRequestResult{
		ID:  pr.ID,
		URL: pr.Links.Self[0].Href,
	}, nil
}

// repoURL builds "<base>/projects/<p>/repos/<r>/<tail>"
// with project and repo path-escaped.
func (c *Client) repoURL(
	project string,
	repo string,
	tail string,
) string {
	return c.apiBaseURL +
		"/projects/" + url.PathEscape(project) +
		"/repos/" + url.PathEscape(repo) +
		"/" + tail
}

func (c *Client) header() http.Header {
	h := make(http.Header, 2)
	h.Set("Authorization", c.authorization)
	h.Set("Content-Type", "application/json")

	return h
}

func statusError(op string, resp *Response) *RemoteCallError {
	return &RemoteCallError{
		Op:         op,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       resp.Text(),
	}
}
