// internal/transfer/transfer_test.go
package transfer

import (
	"archive/zip"
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"strings"
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

func seedProblem(t *testing.T, db *sql.DB, ownerID string) {
	t.Helper()
	ctx := context.Background()
	v1 := "version one details"
	require.NoError(t, storage.CreateProblem(ctx, db, storage.NewProblem{
		ID:          "rate-limiting",
		Name:        "Rate Limiting",
		Description: "sliding window over IPs",
		AppType:     "web",
		OwnerID:     ownerID,
		Tags:        []string{"networking", "middleware"},
		Dependencies: []domain.Dependency{
			{Name: "redis", Version: "7", PackageManager: "apt", Type: domain.DependencyServer},
		},
		Details: &v1,
	}))
	v2 := "version two details"
	require.NoError(t, storage.ApplyProblemUpdate(ctx, db, "rate-limiting", storage.ProblemUpdate{Details: &v2}))
}

func TestExportDisabled(t *testing.T) {
	db := testDBSetup(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice@example.com")

	off := false
	_, err := storage.UpdateSettings(ctx, db, storage.SettingsUpdate{ExportEnabled: &off})
	require.NoError(t, err)

	var buf bytes.Buffer
	err = Export(ctx, db, auth.Principal{UserID: alice.ID}, &buf)
	assert.ErrorIs(t, err, ErrExportDisabled)
	assert.ErrorIs(t, err, auth.ErrForbidden)
}

func TestExportImportRoundTrip(t *testing.T) {
	db := testDBSetup(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")
	seedProblem(t, db, alice.ID)

	var buf bytes.Buffer
	require.NoError(t, Export(ctx, db, auth.Principal{UserID: alice.ID}, &buf))

	reader, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, reader.File, 1)
	assert.Equal(t, "rate-limiting.json", reader.File[0].Name)

	// Bob does not own rate-limiting, so the import creates his own copy.
	result, err := Import(ctx, db, bob.ID, buf.Bytes())
	require.NoError(t, err)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Drafted)
	require.Len(t, result.Created, 1)

	// The id was taken in this database, so the copy got a suffixed slug.
	createdID := result.Created[0]
	assert.NotEqual(t, "rate-limiting", createdID)
	assert.True(t, strings.HasPrefix(createdID, "rate-limiting-"))

	problem, err := storage.GetProblem(ctx, db, createdID)
	require.NoError(t, err)
	assert.Equal(t, bob.ID, problem.OwnerID)
	assert.Equal(t, "Rate Limiting", problem.Name)
	assert.Equal(t, "sliding window over IPs", problem.Description)

	tags, err := storage.ListProblemTags(ctx, db, createdID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"networking", "middleware"}, tags)

	deps, err := storage.ListProblemDependencies(ctx, db, createdID)
	require.NoError(t, err)
	require.Len(t, deps, 1)
	assert.Equal(t, "redis", deps[0].Name)

	// Full history survives the trip, details byte for byte.
	versions, err := storage.ListVersions(ctx, db, createdID, true)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, 1, versions[0].Version)
	assert.Equal(t, "version one details", versions[0].Details)
	assert.Equal(t, 2, versions[1].Version)
	assert.Equal(t, "version two details", versions[1].Details)
}

func TestImportOwnedBecomesDraft(t *testing.T) {
	db := testDBSetup(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice@example.com")
	seedProblem(t, db, alice.ID)

	var buf bytes.Buffer
	require.NoError(t, Export(ctx, db, auth.Principal{UserID: alice.ID}, &buf))

	result, err := Import(ctx, db, alice.ID, buf.Bytes())
	require.NoError(t, err)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Created)
	require.Len(t, result.Drafted, 1)

	draft, err := storage.GetDraft(ctx, db, result.Drafted[0])
	require.NoError(t, err)
	assert.Equal(t, domain.DraftPending, draft.Status)
	require.NotNil(t, draft.SolvedProblemID)
	assert.Equal(t, "rate-limiting", *draft.SolvedProblemID)
	require.NotNil(t, draft.Proposed.Details)
	assert.Equal(t, "version two details", *draft.Proposed.Details, "draft carries the latest version only")

	// Drafting must not touch the canonical problem.
	versions, err := storage.ListVersions(ctx, db, "rate-limiting", true)
	require.NoError(t, err)
	assert.Len(t, versions, 2)
}

func TestImportLooseJSONDocument(t *testing.T) {
	db := testDBSetup(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice@example.com")

	doc := ProblemDocument{
		ID:      "imported-solo",
		Name:    "Imported Solo",
		AppType: "cli",
		Versions: []VersionDocument{
			{Version: 1, Details: "only version"},
		},
	}
	payload, err := json.Marshal(doc)
	require.NoError(t, err)

	result, err := Import(ctx, db, alice.ID, payload)
	require.NoError(t, err)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Created, 1)
	assert.Equal(t, "imported-solo", result.Created[0])
}

func TestImportCollectsItemErrors(t *testing.T) {
	db := testDBSetup(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice@example.com")

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	good, err := zw.Create("good.json")
	require.NoError(t, err)
	payload, err := json.Marshal(ProblemDocument{ID: "good-doc", Name: "Good", AppType: "web"})
	require.NoError(t, err)
	_, err = good.Write(payload)
	require.NoError(t, err)

	bad, err := zw.Create("bad.json")
	require.NoError(t, err)
	_, err = bad.Write([]byte("{not json"))
	require.NoError(t, err)

	missing, err := zw.Create("missing-fields.json")
	require.NoError(t, err)
	_, err = missing.Write([]byte(`{"id":"x"}`))
	require.NoError(t, err)

	require.NoError(t, zw.Close())

	result, err := Import(ctx, db, alice.ID, buf.Bytes())
	require.NoError(t, err)
	assert.Len(t, result.Created, 1)
	assert.Len(t, result.Errors, 2, "one malformed and one invalid item")
}
