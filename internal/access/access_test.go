// internal/access/access_test.go
package access

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

func createTestProblem(t *testing.T, db *sql.DB, ownerID, id string) {
	t.Helper()
	err := storage.CreateProblem(context.Background(), db, storage.NewProblem{
		ID:      id,
		Name:    id,
		AppType: "web",
		OwnerID: ownerID,
	})
	require.NoError(t, err)
}

func shareProblem(t *testing.T, db *sql.DB, byUserID, withUserID, problemID, permission string) {
	t.Helper()
	err := storage.CreateShare(context.Background(), db, &domain.Share{
		ID:               uuid.New().String(),
		Resource:         domain.ResourceRef{Kind: domain.ResourceSolvedProblem, ID: problemID},
		SharedByUserID:   byUserID,
		SharedWithUserID: withUserID,
		Permission:       permission,
	})
	require.NoError(t, err)
}

func shareGroup(t *testing.T, db *sql.DB, byUserID, withUserID, groupID string) {
	t.Helper()
	err := storage.CreateShare(context.Background(), db, &domain.Share{
		ID:               uuid.New().String(),
		Resource:         domain.ResourceRef{Kind: domain.ResourceGroup, ID: groupID},
		SharedByUserID:   byUserID,
		SharedWithUserID: withUserID,
		Permission:       domain.PermissionRead,
	})
	require.NoError(t, err)
}

func TestAccessibleProblemIDsForSession(t *testing.T) {
	db := testDBSetup(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")

	createTestProblem(t, db, alice.ID, "alice-owned")
	createTestProblem(t, db, bob.ID, "bob-shared-direct")
	createTestProblem(t, db, bob.ID, "bob-in-group")
	createTestProblem(t, db, bob.ID, "bob-private")

	shareProblem(t, db, bob.ID, alice.ID, "bob-shared-direct", domain.PermissionRead)

	group := &domain.Group{ID: uuid.New().String(), Name: "bob's group", OwnerID: bob.ID}
	require.NoError(t, storage.CreateGroup(ctx, db, group))
	require.NoError(t, storage.AddGroupMember(ctx, db, group.ID, "bob-in-group"))
	shareGroup(t, db, bob.ID, alice.ID, group.ID)

	ids, err := AccessibleProblemIDs(ctx, db, auth.Principal{UserID: alice.ID})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice-owned", "bob-shared-direct", "bob-in-group"}, ids)

	// Bob sees only what he owns. Sharing out grants him nothing extra.
	ids, err = AccessibleProblemIDs(ctx, db, auth.Principal{UserID: bob.ID})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"bob-shared-direct", "bob-in-group", "bob-private"}, ids)
}

func TestAccessibleProblemIDsForAPIKey(t *testing.T) {
	db := testDBSetup(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice@example.com")

	createTestProblem(t, db, alice.ID, "granted")
	createTestProblem(t, db, alice.ID, "not-granted")
	createTestProblem(t, db, alice.ID, "via-group")

	group := &domain.Group{ID: uuid.New().String(), Name: "granted group", OwnerID: alice.ID}
	require.NoError(t, storage.CreateGroup(ctx, db, group))
	require.NoError(t, storage.AddGroupMember(ctx, db, group.ID, "via-group"))

	key := &domain.APIKey{ID: uuid.New().String(), Name: "agent", HashedKey: "abc", UserID: alice.ID}
	require.NoError(t, storage.CreateAPIKey(ctx, db, key, []domain.ResourceRef{
		{Kind: domain.ResourceSolvedProblem, ID: "granted"},
		{Kind: domain.ResourceGroup, ID: group.ID},
	}))

	// The key's scope is its allow-list, not the owning user's full access.
	ids, err := AccessibleProblemIDs(ctx, db, auth.Principal{UserID: alice.ID, APIKeyID: key.ID})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"granted", "via-group"}, ids)
}

func TestAPIKeyWithoutGrantsSeesNothing(t *testing.T) {
	db := testDBSetup(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice@example.com")
	createTestProblem(t, db, alice.ID, "owned")

	key := &domain.APIKey{ID: uuid.New().String(), Name: "empty", HashedKey: "def", UserID: alice.ID}
	require.NoError(t, storage.CreateAPIKey(ctx, db, key, nil))

	ids, err := AccessibleProblemIDs(ctx, db, auth.Principal{UserID: alice.ID, APIKeyID: key.ID})
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestCanWriteProblem(t *testing.T) {
	db := testDBSetup(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")
	carol := createTestUser(t, db, "carol@example.com")

	createTestProblem(t, db, alice.ID, "p")
	shareProblem(t, db, alice.ID, bob.ID, "p", domain.PermissionRead)
	shareProblem(t, db, alice.ID, carol.ID, "p", domain.PermissionWrite)

	ok, err := CanWriteProblem(ctx, db, alice.ID, "p")
	require.NoError(t, err)
	assert.True(t, ok, "owner can write")

	ok, err = CanWriteProblem(ctx, db, bob.ID, "p")
	require.NoError(t, err)
	assert.False(t, ok, "READ share does not grant write")

	ok, err = CanWriteProblem(ctx, db, carol.ID, "p")
	require.NoError(t, err)
	assert.True(t, ok, "WRITE share grants write")

	// Missing problems are not writable, but not an error either.
	ok, err = CanWriteProblem(ctx, db, alice.ID, "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCanReadGroup(t *testing.T) {
	db := testDBSetup(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")
	carol := createTestUser(t, db, "carol@example.com")

	group := &domain.Group{ID: uuid.New().String(), Name: "g", OwnerID: alice.ID}
	require.NoError(t, storage.CreateGroup(ctx, db, group))
	shareGroup(t, db, alice.ID, bob.ID, group.ID)

	ok, err := CanReadGroup(ctx, db, auth.Principal{UserID: bob.ID}, group.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = CanReadGroup(ctx, db, auth.Principal{UserID: carol.ID}, group.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}
