package bitbucket

// BranchRef is a branch as reported by the server. It
// is only ever decoded from a lookup or create response
// so LatestCommit reflects server state at observation
// time.
type BranchRef struct {
	ID              string `json:"id"`
	DisplayID       string `json:"displayId"`
	Type            string `json:"type"`
	LatestCommit    string `json:"latestCommit"`
	LatestChangeset string `json:"latestChangeset"`
	IsDefault       bool   `json:"isDefault"`
}

// PullRequestResult is the outcome of opening a pull
// request.
type PullRequestResult struct {
	// ID is the server assigned pull request id.
	ID int64
	// URL is the first self link of the created pull
	// request.
	URL string
}

// branchPage is one page of the branch listing.
type branchPage struct {
	Values     []BranchRef `json:"values"`
	IsLastPage bool        `json:"isLastPage"`
}

type createBranchRequest struct {
	Name       string `json:"name"`
	StartPoint string `json:"startPoint"`
}

type pullRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	State       string     `json:"state"`
	Open        bool       `json:"open"`
	Closed      bool       `json:"closed"`
	Locked      bool       `json:"locked"`
	ToRef       *BranchRef `json:"toRef"`
	FromRef     *BranchRef `json:"fromRef"`
}

type link struct {
	Href string `json:"href"`
}

type pullRequestResponse struct {
	ID    int64 `json:"id"`
	Links *struct {
		Self []link `json:"self"`
	} `json:"links"`
}
