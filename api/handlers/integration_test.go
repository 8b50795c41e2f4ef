// api/handlers/integration_test.go
package handlers_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/christopher-kapic/solved-problems-mcp/api"
	"github.com/christopher-kapic/solved-problems-mcp/api/models"
	"github.com/christopher-kapic/solved-problems-mcp/config"
	"github.com/christopher-kapic/solved-problems-mcp/internal/domain"
	"github.com/christopher-kapic/solved-problems-mcp/internal/storage"
)

// testDBSetup creates a temporary SQLite DB for testing and returns the DB pool and cleanup func.
func testDBSetup(t *testing.T) (*sql.DB, *config.Config, func()) {
	t.Helper()

	testCfg := &config.Config{
		ServerPort:    ":0",
		JWTSecret:     "test_secret_key_for_integration_tests_1234567890",
		JWTExpiration: time.Minute * 5,
		DataDir:       t.TempDir(),
		DatabaseFile:  "test.db",
		CORSOrigin:    "*",
	}

	db, err := storage.ConnectDB(testCfg)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	cleanup := func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: failed to close test database: %v", err)
		}
	}
	return db, testCfg, cleanup
}

// setupTestServer creates a test server instance with a test DB.
func setupTestServer(t *testing.T) (*httptest.Server, *sql.DB, func()) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, cfg, dbCleanup := testDBSetup(t)
	router := api.SetupRouter(db, cfg)
	server := httptest.NewServer(router)

	cleanup := func() {
		server.Close()
		dbCleanup()
	}
	return server, db, cleanup
}

// doJSON sends a JSON request with an optional bearer token and decodes the
// response body into a generic map.
func doJSON(t *testing.T, method, url, token string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	decoded := map[string]any{}
	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &decoded)
	}
	return res.StatusCode, decoded
}

// signupAndLogin registers a user and returns their session token.
// Two requests against the rate-limited /auth group per call.
func signupAndLogin(t *testing.T, serverURL, email string) string {
	t.Helper()

	status, _ := doJSON(t, http.MethodPost, serverURL+"/auth/signup", "", models.SignupRequest{
		Email:    email,
		Name:     "Integration User",
		Password: "StrongPassword123!",
	})
	require.Equal(t, http.StatusCreated, status, "signup should succeed")

	status, body := doJSON(t, http.MethodPost, serverURL+"/auth/login", "", models.LoginRequest{
		Email:    email,
		Password: "StrongPassword123!",
	})
	require.Equal(t, http.StatusOK, status, "login should succeed")
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestSignupBootstrapAndAdminGate(t *testing.T) {
	server, _, cleanup := setupTestServer(t)
	defer cleanup()
	assert := assert.New(t)

	// First registered user becomes the admin.
	adminToken := signupAndLogin(t, server.URL, "first@example.com")
	status, body := doJSON(t, http.MethodGet, server.URL+"/api/v1/me", adminToken, nil)
	assert.Equal(http.StatusOK, status)
	assert.Equal(domain.RoleAdmin, body["role"])

	userToken := signupAndLogin(t, server.URL, "second@example.com")
	status, body = doJSON(t, http.MethodGet, server.URL+"/api/v1/me", userToken, nil)
	assert.Equal(http.StatusOK, status)
	assert.Equal(domain.RoleUser, body["role"])

	// Non-admins never reach the admin surface.
	status, _ = doJSON(t, http.MethodGet, server.URL+"/api/v1/admin/settings", userToken, nil)
	assert.Equal(http.StatusForbidden, status)

	// The admin turns signup off; the next registration bounces.
	off := false
	status, _ = doJSON(t, http.MethodPatch, server.URL+"/api/v1/admin/settings", adminToken, models.UpdateSettingsRequest{SignupEnabled: &off})
	assert.Equal(http.StatusOK, status)

	status, _ = doJSON(t, http.MethodPost, server.URL+"/auth/signup", "", models.SignupRequest{
		Email:    "third@example.com",
		Name:     "Too Late",
		Password: "StrongPassword123!",
	})
	assert.Equal(http.StatusForbidden, status)
}

func TestProblemLifecycle(t *testing.T) {
	server, _, cleanup := setupTestServer(t)
	defer cleanup()
	assert := assert.New(t)

	token := signupAndLogin(t, server.URL, "owner@example.com")
	details := "initial details"

	status, body := doJSON(t, http.MethodPost, server.URL+"/api/v1/solved-problems", token, models.CreateProblemRequest{
		Name:        "Rate Limiting",
		Description: "sliding window",
		AppType:     "web",
		Tags:        []string{"networking"},
		Details:     &details,
	})
	assert.Equal(http.StatusCreated, status)
	problemID, _ := body["id"].(string)
	assert.Equal("rate-limiting", problemID, "id derives from the name")

	status, body = doJSON(t, http.MethodGet, server.URL+"/api/v1/solved-problems", token, nil)
	assert.Equal(http.StatusOK, status)
	assert.EqualValues(1, body["count"])

	// An update with changed details appends version 2.
	updated := "revised details"
	status, _ = doJSON(t, http.MethodPatch, server.URL+"/api/v1/solved-problems/"+problemID, token, models.UpdateProblemRequest{Details: &updated})
	assert.Equal(http.StatusOK, status)

	status, body = doJSON(t, http.MethodGet, server.URL+"/api/v1/solved-problems/"+problemID+"/versions", token, nil)
	assert.Equal(http.StatusOK, status)
	assert.EqualValues(2, body["count"])

	status, body = doJSON(t, http.MethodGet, server.URL+"/api/v1/solved-problems/"+problemID+"/versions/2", token, nil)
	assert.Equal(http.StatusOK, status)
	assert.Equal("revised details", body["details"])

	status, _ = doJSON(t, http.MethodDelete, server.URL+"/api/v1/solved-problems/"+problemID, token, nil)
	assert.Equal(http.StatusOK, status)
	status, _ = doJSON(t, http.MethodGet, server.URL+"/api/v1/solved-problems/"+problemID, token, nil)
	assert.Equal(http.StatusNotFound, status)
}

func TestSharingVisibilityAndPermissions(t *testing.T) {
	server, db, cleanup := setupTestServer(t)
	defer cleanup()
	assert := assert.New(t)

	aliceToken := signupAndLogin(t, server.URL, "alice@example.com")
	bobToken := signupAndLogin(t, server.URL, "bob@example.com")

	status, body := doJSON(t, http.MethodPost, server.URL+"/api/v1/solved-problems", aliceToken, models.CreateProblemRequest{
		Name:    "Connection Pooling",
		AppType: "web",
	})
	assert.Equal(http.StatusCreated, status)
	problemID := body["id"].(string)

	// Inaccessible problems read as missing, not forbidden.
	status, _ = doJSON(t, http.MethodGet, server.URL+"/api/v1/solved-problems/"+problemID, bobToken, nil)
	assert.Equal(http.StatusNotFound, status)

	bob, err := storage.FindUserByEmail(context.Background(), db, "bob@example.com")
	require.NoError(t, err)

	status, body = doJSON(t, http.MethodPost, server.URL+"/api/v1/shares", aliceToken, models.ShareRequest{
		ResourceType:     string(domain.ResourceSolvedProblem),
		ResourceID:       problemID,
		SharedWithUserID: bob.ID,
		Permission:       domain.PermissionRead,
	})
	assert.Equal(http.StatusCreated, status)
	shareID := body["id"].(string)

	status, _ = doJSON(t, http.MethodGet, server.URL+"/api/v1/solved-problems/"+problemID, bobToken, nil)
	assert.Equal(http.StatusOK, status)

	// READ does not allow writes.
	newName := "Renamed"
	status, _ = doJSON(t, http.MethodPatch, server.URL+"/api/v1/solved-problems/"+problemID, bobToken, models.UpdateProblemRequest{Name: &newName})
	assert.Equal(http.StatusForbidden, status)

	status, _ = doJSON(t, http.MethodPatch, server.URL+"/api/v1/shares/"+shareID, aliceToken, models.UpdatePermissionRequest{Permission: domain.PermissionWrite})
	assert.Equal(http.StatusOK, status)

	status, _ = doJSON(t, http.MethodPatch, server.URL+"/api/v1/solved-problems/"+problemID, bobToken, models.UpdateProblemRequest{Name: &newName})
	assert.Equal(http.StatusOK, status)

	// Only the owner deletes, shared WRITE or not.
	status, _ = doJSON(t, http.MethodDelete, server.URL+"/api/v1/solved-problems/"+problemID, bobToken, nil)
	assert.Equal(http.StatusForbidden, status)

	// Sharing with yourself is rejected outright.
	alice, err := storage.FindUserByEmail(context.Background(), db, "alice@example.com")
	require.NoError(t, err)
	status, _ = doJSON(t, http.MethodPost, server.URL+"/api/v1/shares", aliceToken, models.ShareRequest{
		ResourceType:     string(domain.ResourceSolvedProblem),
		ResourceID:       problemID,
		SharedWithUserID: alice.ID,
		Permission:       domain.PermissionRead,
	})
	assert.Equal(http.StatusBadRequest, status)
}

// rpcCall posts a JSON-RPC request to /mcp with the given API key.
func rpcCall(t *testing.T, serverURL, apiKey, method string, params any) (int, map[string]any) {
	t.Helper()
	payload := map[string]any{"jsonrpc": "2.0", "id": 1, "method": method}
	if params != nil {
		payload["params"] = params
	}
	return doJSON(t, http.MethodPost, serverURL+"/mcp", apiKey, payload)
}

// toolText extracts and decodes the text content of a tools/call result.
func toolText(t *testing.T, body map[string]any, out any) {
	t.Helper()
	result, ok := body["result"].(map[string]any)
	require.True(t, ok, "expected a result, got: %v", body)
	content, ok := result["content"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, content)
	first := content[0].(map[string]any)
	require.NoError(t, json.Unmarshal([]byte(first["text"].(string)), out))
}

func TestAPIKeyScopedMCP(t *testing.T) {
	server, db, cleanup := setupTestServer(t)
	defer cleanup()
	assert := assert.New(t)

	token := signupAndLogin(t, server.URL, "alice@example.com")

	var problemIDs []string
	for _, name := range []string{"Granted Problem", "Hidden Problem"} {
		status, body := doJSON(t, http.MethodPost, server.URL+"/api/v1/solved-problems", token, models.CreateProblemRequest{
			Name:    name,
			AppType: "web",
		})
		require.Equal(t, http.StatusCreated, status)
		problemIDs = append(problemIDs, body["id"].(string))
	}

	// Key scoped to the first problem only.
	status, body := doJSON(t, http.MethodPost, server.URL+"/api/v1/api-keys", token, models.CreateAPIKeyRequest{
		Name: "scoped-agent",
		Accesses: []models.ResourceRefPayload{
			{Type: string(domain.ResourceSolvedProblem), ID: problemIDs[0]},
		},
	})
	require.Equal(t, http.StatusCreated, status)
	apiKey := body["key"].(string)
	keyID := body["id"].(string)
	assert.True(strings.HasPrefix(apiKey, "sp_"), "plaintext key carries the sp_ prefix")

	// The session token is not an API key and must not open /mcp.
	status, _ = rpcCall(t, server.URL, token, "tools/list", nil)
	assert.Equal(http.StatusUnauthorized, status)

	status, body = rpcCall(t, server.URL, apiKey, "tools/list", nil)
	assert.Equal(http.StatusOK, status)
	result := body["result"].(map[string]any)
	tools := result["tools"].([]any)
	assert.Len(tools, 3)

	// list_solved_problems sees only the granted problem.
	status, body = rpcCall(t, server.URL, apiKey, "tools/call", map[string]any{
		"name":      "list_solved_problems",
		"arguments": map[string]any{},
	})
	assert.Equal(http.StatusOK, status)
	var listed []map[string]any
	toolText(t, body, &listed)
	require.Len(t, listed, 1)
	assert.Equal(problemIDs[0], listed[0]["id"])

	// get_solved_problems silently skips ids outside the key's scope.
	status, body = rpcCall(t, server.URL, apiKey, "tools/call", map[string]any{
		"name":      "get_solved_problems",
		"arguments": map[string]any{"ids": problemIDs},
	})
	assert.Equal(http.StatusOK, status)
	var fetched []map[string]any
	toolText(t, body, &fetched)
	require.Len(t, fetched, 1)
	assert.Equal(problemIDs[0], fetched[0]["id"])

	// list filters are honored under their published snake_case names.
	status, body = rpcCall(t, server.URL, apiKey, "tools/call", map[string]any{
		"name":      "list_solved_problems",
		"arguments": map[string]any{"updated_before": "2000-01-01"},
	})
	assert.Equal(http.StatusOK, status)
	var filtered []map[string]any
	toolText(t, body, &filtered)
	assert.Empty(filtered, "an ancient cutoff excludes everything")

	// draft_solved_problem takes the target as "id"; an in-scope target
	// becomes the draft's problem reference.
	status, body = rpcCall(t, server.URL, apiKey, "tools/call", map[string]any{
		"name": "draft_solved_problem",
		"arguments": map[string]any{
			"id":      problemIDs[0],
			"name":    "Agent Update",
			"appType": "web",
			"details": "agent revision",
		},
	})
	assert.Equal(http.StatusOK, status)
	var drafted map[string]any
	toolText(t, body, &drafted)
	assert.Equal("PENDING", drafted["status"])
	require.NotEmpty(t, drafted["draftId"])

	targeted, err := storage.GetDraft(context.Background(), db, drafted["draftId"].(string))
	require.NoError(t, err)
	require.NotNil(t, targeted.SolvedProblemID, "in-scope id argument must target the draft")
	assert.Equal(problemIDs[0], *targeted.SolvedProblemID)

	// An out-of-scope id degrades to a new-problem proposal.
	status, body = rpcCall(t, server.URL, apiKey, "tools/call", map[string]any{
		"name": "draft_solved_problem",
		"arguments": map[string]any{
			"id":      problemIDs[1],
			"name":    "Agent Proposal",
			"appType": "web",
		},
	})
	assert.Equal(http.StatusOK, status)
	drafted = nil
	toolText(t, body, &drafted)
	assert.Equal("PENDING", drafted["status"])
	degraded, err := storage.GetDraft(context.Background(), db, drafted["draftId"].(string))
	require.NoError(t, err)
	assert.Nil(degraded.SolvedProblemID)

	// Revocation is immediate and final.
	status, _ = doJSON(t, http.MethodDelete, server.URL+"/api/v1/api-keys/"+keyID, token, nil)
	assert.Equal(http.StatusOK, status)
	status, _ = doJSON(t, http.MethodDelete, server.URL+"/api/v1/api-keys/"+keyID, token, nil)
	assert.Equal(http.StatusConflict, status)

	status, _ = rpcCall(t, server.URL, apiKey, "tools/list", nil)
	assert.Equal(http.StatusUnauthorized, status)
}

func TestMCPUnknownMethodAndTool(t *testing.T) {
	server, _, cleanup := setupTestServer(t)
	defer cleanup()
	assert := assert.New(t)

	token := signupAndLogin(t, server.URL, "alice@example.com")
	status, body := doJSON(t, http.MethodPost, server.URL+"/api/v1/api-keys", token, models.CreateAPIKeyRequest{Name: "agent"})
	require.Equal(t, http.StatusCreated, status)
	apiKey := body["key"].(string)

	status, body = rpcCall(t, server.URL, apiKey, "initialize", nil)
	assert.Equal(http.StatusOK, status)
	result := body["result"].(map[string]any)
	assert.Equal("2024-11-05", result["protocolVersion"])

	status, body = rpcCall(t, server.URL, apiKey, "resources/list", nil)
	assert.Equal(http.StatusOK, status)
	rpcErr := body["error"].(map[string]any)
	assert.EqualValues(-32601, rpcErr["code"])

	status, body = rpcCall(t, server.URL, apiKey, "tools/call", map[string]any{
		"name":      "no_such_tool",
		"arguments": map[string]any{},
	})
	assert.Equal(http.StatusOK, status)
	rpcErr = body["error"].(map[string]any)
	assert.EqualValues(-32602, rpcErr["code"])

	// Tool-level validation failures ride inside the result.
	status, body = rpcCall(t, server.URL, apiKey, "tools/call", map[string]any{
		"name":      "draft_solved_problem",
		"arguments": map[string]any{"appType": "web"},
	})
	assert.Equal(http.StatusOK, status)
	result = body["result"].(map[string]any)
	assert.Equal(true, result["isError"])
}

func TestAuthRateLimit(t *testing.T) {
	server, _, cleanup := setupTestServer(t)
	defer cleanup()
	assert := assert.New(t)

	// The /auth group allows 5 requests per window per IP.
	var last int
	for i := 0; i < 6; i++ {
		last, _ = doJSON(t, http.MethodPost, server.URL+"/auth/login", "", models.LoginRequest{
			Email:    fmt.Sprintf("nobody%d@example.com", i),
			Password: "wrong-password",
		})
	}
	assert.Equal(http.StatusTooManyRequests, last)
}
