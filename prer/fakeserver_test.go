package prer_test

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/byte4ever/bbpr/access"
	"github.com/byte4ever/bbpr/bitbucket"
)

const apiPrefix = "/rest/api/1.0/projects/PRJ/repos/app/"

// fakeServer is an in-memory Bitbucket Server for a
// single repository PRJ/app.
type fakeServer struct {
	*httptest.Server

	mu       sync.Mutex
	branches map[string]bitbucket.BranchRef
	calls    []string
	prBodies []map[string]any
	prStatus int
	prSeq    int64
}

func newFakeServer(
	tb testing.TB,
	branches ...bitbucket.BranchRef,
) *fakeServer {
	tb.Helper()

	fs := &fakeServer{
		branches: make(map[string]bitbucket.BranchRef),
		prStatus: http.StatusCreated,
	}

	for _, b := range branches {
		fs.branches[b.DisplayID] = b
	}

	fs.Server = httptest.NewServer(http.HandlerFunc(fs.serve))
	tb.Cleanup(fs.Close)

	return fs
}

func (fs *fakeServer) serve(
	w http.ResponseWriter,
	r *http.Request,
) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	tail := strings.TrimPrefix(r.URL.Path, apiPrefix)
	fs.calls = append(fs.calls, r.Method+" "+tail)

	if r.Header.Get("Authorization") != "Bearer tok" {
		w.WriteHeader(http.StatusUnauthorized)

		return
	}

	switch {
	case r.Method == http.MethodGet && tail == "branches":
		fs.listBranches(w, r.URL.Query().Get("filterText"))
	case r.Method == http.MethodPost && tail == "branches":
		fs.createBranch(w, r)
	case r.Method == http.MethodPost && tail == "pull-requests":
		fs.createPullRequest(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// listBranches mimics the boosted fuzzy filter: every
// branch containing the filter text is returned.
func (fs *fakeServer) listBranches(
	w http.ResponseWriter,
	filter string,
) {
	values := make([]bitbucket.BranchRef, 0, len(fs.branches))

	for name, b := range fs.branches {
		if strings.Contains(name, filter) {
			values = append(values, b)
		}
	}

	sort.Slice(values, func(i, j int) bool {
		return values[i].DisplayID < values[j].DisplayID
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"values":     values,
		"isLastPage": true,
	})
}

func (fs *fakeServer) createBranch(
	w http.ResponseWriter,
	r *http.Request,
) {
	var req struct {
		Name       string `json:"name"`
		StartPoint string `json:"startPoint"`
	}

	if err := decode(r.Body, &req); err != nil {
		w.WriteHeader(http.StatusBadRequest)

		return
	}

	if _, ok := fs.branches[req.Name]; ok {
		w.WriteHeader(http.StatusConflict)
		_, _ = io.WriteString(w, `{"errors":[{"message":"exists"}]}`)

		return
	}

	ref := branch(req.Name, req.StartPoint)
	fs.branches[req.Name] = ref

	writeJSON(w, http.StatusOK, ref)
}

func (fs *fakeServer) createPullRequest(
	w http.ResponseWriter,
	r *http.Request,
) {
	var body map[string]any
	if err := decode(r.Body, &body); err != nil {
		w.WriteHeader(http.StatusBadRequest)

		return
	}

	fs.prBodies = append(fs.prBodies, body)

	if fs.prStatus != http.StatusCreated {
		w.WriteHeader(fs.prStatus)
		_, _ = io.WriteString(w, "duplicate pull request")

		return
	}

	fs.prSeq++

	writeJSON(w, http.StatusCreated, map[string]any{
		"id": fs.prSeq,
		"links": map[string]any{
			"self": []map[string]string{{
				"href": fmt.Sprintf(
					"%s/projects/PRJ/repos/app/pull-requests/%d",
					fs.URL, fs.prSeq,
				),
			}},
		},
	})
}

func (fs *fakeServer) hasBranch(name string) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	_, ok := fs.branches[name]

	return ok
}

func (fs *fakeServer) countCalls(call string) int {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	n := 0

	for _, c := range fs.calls {
		if c == call {
			n++
		}
	}

	return n
}

func (fs *fakeServer) pullRequestBodies() []map[string]any {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	return append([]map[string]any(nil), fs.prBodies...)
}

// host returns the host:port of the server.
func (fs *fakeServer) host() string {
	u, _ := url.Parse(fs.URL)

	return u.Host
}

// repoURL is the browse URL of PRJ/app on the server.
func (fs *fakeServer) repoURL() string {
	return fs.host() + "/projects/PRJ/repos/app/browse"
}

// resolver returns an access resolver bound to the
// server with token "tok".
func (fs *fakeServer) resolver(tb testing.TB) *access.Resolver {
	tb.Helper()

	r, err := access.NewResolver([]access.Integration{{
		Host:       fs.host(),
		APIBaseURL: fs.URL + "/rest/api/1.0",
		Token:      "tok",
	}})
	if err != nil {
		tb.Fatalf("new resolver: %v", err)
	}

	return r
}

func branch(name string, commit string) bitbucket.BranchRef {
	return bitbucket.BranchRef{
		ID:              "refs/heads/" + name,
		DisplayID:       name,
		Type:            "BRANCH",
		LatestCommit:    commit,
		LatestChangeset: commit,
	}
}

func decode(r io.Reader, v any) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	return json.Unmarshal(raw, v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(raw)
}
