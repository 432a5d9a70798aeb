package prer_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/byte4ever/bbpr/bitbucket"
	"github.com/byte4ever/bbpr/prer"
)

type mockBranchAPI struct {
	mock.Mock
}

func (m *mockBranchAPI) FindBranch(
	ctx context.Context,
	project string,
	repo string,
	branchName string,
) (*bitbucket.BranchRef, bool, error) {
	args := m.Called(ctx, project, repo, branchName)

	ref, _ := args.Get(0).(*bitbucket.BranchRef)

	return ref, args.Bool(1), args.Error(2)
}

func (m *mockBranchAPI) CreateBranch(
	ctx context.Context,
	project string,
	repo string,
	branchName string,
	startPoint string,
) (*bitbucket.BranchRef, error) {
	args := m.Called(ctx, project, repo, branchName, startPoint)

	ref, _ := args.Get(0).(*bitbucket.BranchRef)

	return ref, args.Error(1)
}

var _ prer.BranchAPI = (*bitbucket.Client)(nil)

func refPtr(name string, commit string) *bitbucket.BranchRef {
	b := branch(name, commit)

	return &b
}

func TestEnsureSourceBranch_idempotent(t *testing.T) {
	t.Parallel()

	fs := newFakeServer(t, branch("master", "abc123"))

	client, err := bitbucket.NewClient(
		bitbucket.NewHTTPTransport(fs.Client()),
		fs.URL+"/rest/api/1.0",
		"Bearer tok",
	)
	require.NoError(t, err)

	first, err := prer.EnsureSourceBranch(
		context.Background(), client,
		"PRJ", "app", "master", "feature-x",
	)
	require.NoError(t, err)
	assert.True(t, first.Created)

	second, err := prer.EnsureSourceBranch(
		context.Background(), client,
		"PRJ", "app", "master", "feature-x",
	)
	require.NoError(t, err)
	assert.False(t, second.Created)

	assert.Equal(t, first.FromRef, second.FromRef)
	assert.Equal(t, 1, fs.countCalls("POST branches"))
}

func TestEnsureSourceBranch_conflict_reuses_branch(
	t *testing.T,
) {
	t.Parallel()

	ctx := context.Background()
	master := refPtr("master", "abc123")
	raced := refPtr("feature-x", "fff999")

	api := &mockBranchAPI{}
	api.On("FindBranch", ctx, "PRJ", "app", "master").
		Return(master, true, nil).Once()
	api.On("FindBranch", ctx, "PRJ", "app", "feature-x").
		Return(nil, false, nil).Once()
	api.On(
		"CreateBranch", ctx, "PRJ", "app", "feature-x", "abc123",
	).Return(nil, &bitbucket.RemoteCallError{
		Op:         "create branch",
		StatusCode: http.StatusConflict,
		Status:     "Conflict",
	}).Once()
	api.On("FindBranch", ctx, "PRJ", "app", "feature-x").
		Return(raced, true, nil).Once()

	refs, err := prer.EnsureSourceBranch(
		ctx, api, "PRJ", "app", "master", "feature-x",
	)
	require.NoError(t, err)

	assert.Same(t, master, refs.ToRef)
	assert.Same(t, raced, refs.FromRef)
	assert.False(t, refs.Created)
	api.AssertExpectations(t)
}

func TestEnsureSourceBranch_conflict_still_missing(
	t *testing.T,
) {
	t.Parallel()

	ctx := context.Background()

	api := &mockBranchAPI{}
	api.On("FindBranch", ctx, "PRJ", "app", "master").
		Return(refPtr("master", "abc123"), true, nil).Once()
	api.On("FindBranch", ctx, "PRJ", "app", "feature-x").
		Return(nil, false, nil).Twice()
	api.On(
		"CreateBranch", ctx, "PRJ", "app", "feature-x", "abc123",
	).Return(nil, &bitbucket.RemoteCallError{
		Op:         "create branch",
		StatusCode: http.StatusConflict,
	}).Once()

	refs, err := prer.EnsureSourceBranch(
		ctx, api, "PRJ", "app", "master", "feature-x",
	)

	assert.Nil(t, refs)
	assert.Equal(t, http.StatusConflict, bitbucket.StatusOf(err))
	api.AssertExpectations(t)
}

func TestEnsureSourceBranch_create_failure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	api := &mockBranchAPI{}
	api.On("FindBranch", ctx, "PRJ", "app", "master").
		Return(refPtr("master", "abc123"), true, nil).Once()
	api.On("FindBranch", ctx, "PRJ", "app", "feature-x").
		Return(nil, false, nil).Once()
	api.On(
		"CreateBranch", ctx, "PRJ", "app", "feature-x", "abc123",
	).Return(nil, &bitbucket.RemoteCallError{
		Op:         "create branch",
		StatusCode: http.StatusForbidden,
	}).Once()

	_, err := prer.EnsureSourceBranch(
		ctx, api, "PRJ", "app", "master", "feature-x",
	)

	assert.Equal(t, http.StatusForbidden, bitbucket.StatusOf(err))
	api.AssertExpectations(t)
}

func TestEnsureSourceBranch_lookup_failure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	errLookup := errors.New("connection reset")

	tests := []struct {
		name  string
		setup func(api *mockBranchAPI)
	}{
		{
			name: "target lookup",
			setup: func(api *mockBranchAPI) {
				api.On("FindBranch", ctx, "PRJ", "app", "master").
					Return(nil, false, errLookup)
			},
		},
		{
			name: "source lookup",
			setup: func(api *mockBranchAPI) {
				api.On("FindBranch", ctx, "PRJ", "app", "master").
					Return(refPtr("master", "abc123"), true, nil)
				api.On("FindBranch", ctx, "PRJ", "app", "feature-x").
					Return(nil, false, errLookup)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			api := &mockBranchAPI{}
			tt.setup(api)

			refs, err := prer.EnsureSourceBranch(
				ctx, api, "PRJ", "app", "master", "feature-x",
			)

			assert.Nil(t, refs)
			assert.ErrorIs(t, err, errLookup)
			api.AssertNotCalled(
				t, "CreateBranch",
				mock.Anything, mock.Anything, mock.Anything,
				mock.Anything, mock.Anything,
			)
		})
	}
}

func TestEnsureSourceBranch_target_missing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	api := &mockBranchAPI{}
	api.On("FindBranch", ctx, "PRJ", "app", "master").
		Return(nil, false, nil).Once()

	_, err := prer.EnsureSourceBranch(
		ctx, api, "PRJ", "app", "master", "feature-x",
	)

	assert.ErrorIs(t, err, prer.ErrTargetBranchNotFound)
	api.AssertExpectations(t)
}

func TestEnsureSourceBranch_conflict_relookup_fails(
	t *testing.T,
) {
	t.Parallel()

	ctx := context.Background()
	errLookup := errors.New("connection reset")

	api := &mockBranchAPI{}
	api.On("FindBranch", ctx, "PRJ", "app", "master").
		Return(refPtr("master", "abc123"), true, nil).Once()
	api.On("FindBranch", ctx, "PRJ", "app", "feature-x").
		Return(nil, false, nil).Once()
	api.On(
		"CreateBranch", ctx, "PRJ", "app", "feature-x", "abc123",
	).Return(nil, &bitbucket.RemoteCallError{
		Op:         "create branch",
		StatusCode: http.StatusConflict,
	}).Once()
	api.On("FindBranch", ctx, "PRJ", "app", "feature-x").
		Return(nil, false, errLookup).Once()

	refs, err := prer.EnsureSourceBranch(
		ctx, api, "PRJ", "app", "master", "feature-x",
	)

	assert.Nil(t, refs)
	assert.Equal(t, http.StatusConflict, bitbucket.StatusOf(err))
	assert.ErrorIs(t, err, errLookup)
	assert.ErrorContains(t, err, "re-lookup after conflict")
	api.AssertExpectations(t)
}
