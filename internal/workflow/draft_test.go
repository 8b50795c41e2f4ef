// internal/workflow/draft_test.go
package workflow

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/christopher-kapic/solved-problems-mcp/config"
	"github.com/christopher-kapic/solved-problems-mcp/internal/auth"
	"github.com/christopher-kapic/solved-problems-mcp/internal/domain"
	"github.com/christopher-kapic/solved-problems-mcp/internal/storage"
)

func testDBSetup(t *testing.T) *sql.DB {
	t.Helper()
	cfg := &config.Config{DataDir: t.TempDir(), DatabaseFile: "test.db"}
	db, err := storage.ConnectDB(cfg)
	require.NoError(t, err, "Failed to connect test database")
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestUser(t *testing.T, db *sql.DB, email string) *domain.User {
	t.Helper()
	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         "Test User",
		PasswordHash: "x",
		Role:         domain.RoleUser,
	}
	require.NoError(t, storage.CreateUser(context.Background(), db, user))
	return user
}

func createTestProblem(t *testing.T, db *sql.DB, ownerID, id, details string) {
	t.Helper()
	p := storage.NewProblem{ID: id, Name: id, AppType: "web", OwnerID: ownerID}
	if details != "" {
		p.Details = &details
	}
	require.NoError(t, storage.CreateProblem(context.Background(), db, p))
}

func TestCreateDegradesInaccessibleTarget(t *testing.T) {
	db := testDBSetup(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")
	createTestProblem(t, db, alice.ID, "alice-private", "")

	target := "alice-private"
	draft, err := Create(ctx, db, auth.Principal{UserID: bob.ID}, &target, domain.ProposedData{
		Name:    "Proposal",
		AppType: "web",
	})
	require.NoError(t, err)
	assert.Nil(t, draft.SolvedProblemID, "inaccessible target degrades to a new-problem proposal")
	assert.Equal(t, domain.DraftPending, draft.Status)
}

func TestCreateRecordsOriginatingKey(t *testing.T) {
	db := testDBSetup(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice@example.com")

	key := &domain.APIKey{ID: uuid.New().String(), Name: "agent", HashedKey: "abc", UserID: alice.ID}
	require.NoError(t, storage.CreateAPIKey(ctx, db, key, nil))

	draft, err := Create(ctx, db, auth.Principal{UserID: alice.ID, APIKeyID: key.ID}, nil, domain.ProposedData{
		Name:    "From agent",
		AppType: "cli",
	})
	require.NoError(t, err)
	require.NotNil(t, draft.APIKeyID)
	assert.Equal(t, key.ID, *draft.APIKeyID)
}

func TestApproveUpdateDraftMergesAndVersions(t *testing.T) {
	db := testDBSetup(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice@example.com")
	createTestProblem(t, db, alice.ID, "target", "v1 details")

	target := "target"
	newDetails := "v2 details"
	draft, err := Create(ctx, db, auth.Principal{UserID: alice.ID}, &target, domain.ProposedData{
		Name:        "Updated Name",
		Description: "updated",
		AppType:     "web",
		Tags:        []string{"refined"},
		Details:     &newDetails,
	})
	require.NoError(t, err)

	problemID, err := Approve(ctx, db, alice.ID, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, "target", problemID)

	problem, err := storage.GetProblem(ctx, db, "target")
	require.NoError(t, err)
	assert.Equal(t, "Updated Name", problem.Name)
	assert.Equal(t, "updated", problem.Description)

	versions, err := storage.ListVersions(ctx, db, "target", true)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, "v2 details", versions[1].Details)

	tags, err := storage.ListProblemTags(ctx, db, "target")
	require.NoError(t, err)
	assert.Equal(t, []string{"refined"}, tags)
}

func TestApproveTwiceAppliesOnce(t *testing.T) {
	db := testDBSetup(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice@example.com")
	createTestProblem(t, db, alice.ID, "target", "v1")

	target := "target"
	details := "v2"
	draft, err := Create(ctx, db, auth.Principal{UserID: alice.ID}, &target, domain.ProposedData{
		Name:    "target",
		AppType: "web",
		Details: &details,
	})
	require.NoError(t, err)

	_, err = Approve(ctx, db, alice.ID, draft.ID)
	require.NoError(t, err)

	_, err = Approve(ctx, db, alice.ID, draft.ID)
	assert.ErrorIs(t, err, storage.ErrDraftNotPending)

	// The second attempt must not have re-applied the merge.
	versions, err := storage.ListVersions(ctx, db, "target", true)
	require.NoError(t, err)
	assert.Len(t, versions, 2)
}

func TestApproveNewProblemDraft(t *testing.T) {
	db := testDBSetup(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice@example.com")

	details := "fresh details"
	draft, err := Create(ctx, db, auth.Principal{UserID: alice.ID}, nil, domain.ProposedData{
		Name:    "A Brand New Problem",
		AppType: "mobile",
		Tags:    []string{"new"},
		Details: &details,
	})
	require.NoError(t, err)

	problemID, err := Approve(ctx, db, alice.ID, draft.ID)
	require.NoError(t, err)
	require.NotEmpty(t, problemID)

	problem, err := storage.GetProblem(ctx, db, problemID)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, problem.OwnerID, "approver owns the created problem")
	assert.Equal(t, "A Brand New Problem", problem.Name)

	versions, err := storage.ListVersions(ctx, db, problemID, true)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, "fresh details", versions[0].Details)
}

func TestApproveNewProblemWithEmptyDetails(t *testing.T) {
	db := testDBSetup(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice@example.com")

	empty := ""
	draft, err := Create(ctx, db, auth.Principal{UserID: alice.ID}, nil, domain.ProposedData{
		Name:    "Sketch",
		AppType: "web",
		Details: &empty,
	})
	require.NoError(t, err)

	problemID, err := Approve(ctx, db, alice.ID, draft.ID)
	require.NoError(t, err)

	versions, err := storage.ListVersions(ctx, db, problemID, true)
	require.NoError(t, err)
	assert.Empty(t, versions, "empty details must not open the history")
}

func TestApproveRequiresReviewAuthority(t *testing.T) {
	db := testDBSetup(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")
	createTestProblem(t, db, alice.ID, "alice-owned", "")

	// Bob drafts against a problem Alice owns (shared READ so the target
	// survives draft creation).
	require.NoError(t, storage.CreateShare(ctx, db, &domain.Share{
		ID:               uuid.New().String(),
		Resource:         domain.ResourceRef{Kind: domain.ResourceSolvedProblem, ID: "alice-owned"},
		SharedByUserID:   alice.ID,
		SharedWithUserID: bob.ID,
		Permission:       domain.PermissionRead,
	}))

	target := "alice-owned"
	draft, err := Create(ctx, db, auth.Principal{UserID: bob.ID}, &target, domain.ProposedData{
		Name:    "Bob's edit",
		AppType: "web",
	})
	require.NoError(t, err)

	// Only the target's owner reviews targeted drafts.
	_, err = Approve(ctx, db, bob.ID, draft.ID)
	assert.ErrorIs(t, err, auth.ErrForbidden)

	_, err = Approve(ctx, db, alice.ID, draft.ID)
	assert.NoError(t, err)
}

func TestRejectLeavesProblemUntouched(t *testing.T) {
	db := testDBSetup(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice@example.com")
	createTestProblem(t, db, alice.ID, "target", "v1")

	target := "target"
	details := "rejected details"
	draft, err := Create(ctx, db, auth.Principal{UserID: alice.ID}, &target, domain.ProposedData{
		Name:    "Should Not Apply",
		AppType: "web",
		Details: &details,
	})
	require.NoError(t, err)

	require.NoError(t, Reject(ctx, db, alice.ID, draft.ID))

	problem, err := storage.GetProblem(ctx, db, "target")
	require.NoError(t, err)
	assert.Equal(t, "target", problem.Name)
	versions, err := storage.ListVersions(ctx, db, "target", true)
	require.NoError(t, err)
	assert.Len(t, versions, 1)

	stored, err := storage.GetDraft(ctx, db, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DraftRejected, stored.Status)
}

func TestCopyToOwnKeepsDraftPending(t *testing.T) {
	db := testDBSetup(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")
	createTestProblem(t, db, alice.ID, "source", "")

	require.NoError(t, storage.CreateShare(ctx, db, &domain.Share{
		ID:               uuid.New().String(),
		Resource:         domain.ResourceRef{Kind: domain.ResourceSolvedProblem, ID: "source"},
		SharedByUserID:   alice.ID,
		SharedWithUserID: bob.ID,
		Permission:       domain.PermissionRead,
	}))

	target := "source"
	details := "copied details"
	draft, err := Create(ctx, db, auth.Principal{UserID: bob.ID}, &target, domain.ProposedData{
		Name:    "Copied Problem",
		AppType: "web",
		Details: &details,
	})
	require.NoError(t, err)

	problemID, err := CopyToOwn(ctx, db, bob.ID, draft.ID)
	require.NoError(t, err)
	require.NotEmpty(t, problemID)

	problem, err := storage.GetProblem(ctx, db, problemID)
	require.NoError(t, err)
	assert.Equal(t, bob.ID, problem.OwnerID)
	require.NotNil(t, problem.CopiedFromID)
	assert.Equal(t, "source", *problem.CopiedFromID)

	// Copying is a side branch: the original draft stays reviewable.
	stored, err := storage.GetDraft(ctx, db, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DraftPending, stored.Status)
}

func TestApproveManyCountsSuccesses(t *testing.T) {
	db := testDBSetup(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice@example.com")

	var ids []string
	for _, name := range []string{"First Proposal", "Second Proposal"} {
		draft, err := Create(ctx, db, auth.Principal{UserID: alice.ID}, nil, domain.ProposedData{
			Name:    name,
			AppType: "web",
		})
		require.NoError(t, err)
		ids = append(ids, draft.ID)
	}
	ids = append(ids, "no-such-draft")

	approved := ApproveMany(ctx, db, alice.ID, ids)
	assert.Equal(t, 2, approved)
}
