// internal/transfer/transfer.go
// Export/import mapper: serializes accessible problems to a portable zip of
// <id>.json documents and re-materializes such bundles, branching on
// ownership. Imports of problems the caller owns become update drafts (always
// reviewed); everything else is created directly as a new problem.
package transfer

import (
	"archive/zip"
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/christopher-kapic/solved-problems-mcp/internal/access"
	"github.com/christopher-kapic/solved-problems-mcp/internal/auth"
	"github.com/christopher-kapic/solved-problems-mcp/internal/core"
	"github.com/christopher-kapic/solved-problems-mcp/internal/domain"
	"github.com/christopher-kapic/solved-problems-mcp/internal/logger"
	"github.com/christopher-kapic/solved-problems-mcp/internal/storage"
)

var customLog = logger.NewLogger()

// ErrExportDisabled signals that the site-wide export switch is off.
var ErrExportDisabled = fmt.Errorf("export is disabled: %w", auth.ErrForbidden)

// validate checks import documents; binding tags don't apply to payloads
// parsed out of uploaded archives.
var validate = validator.New()

// VersionDocument is one immutable version inside a ProblemDocument.
type VersionDocument struct {
	Version int    `json:"version"`
	Details string `json:"details"`
}

// ProblemDocument is the portable form of one solved problem, one JSON file
// per problem inside the export archive.
type ProblemDocument struct {
	ID           string              `json:"id" validate:"required"`
	Name         string              `json:"name" validate:"required"`
	Description  string              `json:"description"`
	AppType      string              `json:"appType" validate:"required"`
	Tags         []string            `json:"tags"`
	Dependencies []domain.Dependency `json:"dependencies" validate:"omitempty,dive"`
	Versions     []VersionDocument   `json:"versions"`
}

// ImportResult reports an import batch: item failures are collected, not
// fatal.
type ImportResult struct {
	Drafted []string `json:"drafted"`
	Created []string `json:"created"`
	Errors  []string `json:"errors"`
}

// --- Export ---

// Export writes a zip of <id>.json documents covering every problem in the
// principal's accessible set. Fails with ErrExportDisabled when the site
// setting is off.
func Export(ctx context.Context, db *sql.DB, principal auth.Principal, w io.Writer) error {
	settings, err := storage.GetSettings(ctx, db)
	if err != nil {
		return err
	}
	if !settings.ExportEnabled {
		return ErrExportDisabled
	}

	ids, err := access.AccessibleProblemIDs(ctx, db, principal)
	if err != nil {
		return err
	}
	problems, err := storage.ListProblems(ctx, db, ids, storage.ProblemFilter{})
	if err != nil {
		return err
	}

	archive := zip.NewWriter(w)
	for _, problem := range problems {
		doc, err := buildDocument(ctx, db, problem)
		if err != nil {
			return err
		}
		entry, err := archive.Create(problem.ID + ".json")
		if err != nil {
			return fmt.Errorf("failed to create archive entry for '%s': %w", problem.ID, err)
		}
		encoder := json.NewEncoder(entry)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode problem '%s': %w", problem.ID, err)
		}
	}
	if err := archive.Close(); err != nil {
		return fmt.Errorf("failed to finalize export archive: %w", err)
	}
	customLog.Printf("Transfer: Exported %d problems for user %s", len(problems), principal.UserID)
	return nil
}

func buildDocument(ctx context.Context, db *sql.DB, problem domain.SolvedProblem) (*ProblemDocument, error) {
	tags, err := storage.ListProblemTags(ctx, db, problem.ID)
	if err != nil {
		return nil, err
	}
	deps, err := storage.ListProblemDependencies(ctx, db, problem.ID)
	if err != nil {
		return nil, err
	}
	versions, err := storage.ListVersions(ctx, db, problem.ID, true)
	if err != nil {
		return nil, err
	}

	doc := &ProblemDocument{
		ID:           problem.ID,
		Name:         problem.Name,
		Description:  problem.Description,
		AppType:      problem.AppType,
		Tags:         tags,
		Dependencies: deps,
		Versions:     make([]VersionDocument, 0, len(versions)),
	}
	for _, v := range versions {
		doc.Versions = append(doc.Versions, VersionDocument{Version: v.Version, Details: v.Details})
	}
	return doc, nil
}

// --- Import ---

// Import accepts either a zip archive of problem documents or a single loose
// JSON document. Each item is handled independently: owned ids turn into
// update drafts, everything else is created outright. Malformed items are
// recorded and skipped.
func Import(ctx context.Context, db *sql.DB, userID string, data []byte) (*ImportResult, error) {
	result := &ImportResult{Drafted: []string{}, Created: []string{}, Errors: []string{}}

	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		// Not a zip; treat the payload as one loose JSON document.
		importItem(ctx, db, userID, "document", data, result)
		return result, nil
	}

	for _, entry := range reader.File {
		payload, err := readEntry(entry)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", entry.Name, err))
			continue
		}
		importItem(ctx, db, userID, entry.Name, payload, result)
	}
	return result, nil
}

func readEntry(entry *zip.File) ([]byte, error) {
	rc, err := entry.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open archive entry: %w", err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func importItem(ctx context.Context, db *sql.DB, userID, name string, payload []byte, result *ImportResult) {
	var doc ProblemDocument
	if err := json.Unmarshal(payload, &doc); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("%s: invalid JSON: %v", name, err))
		return
	}
	if err := validate.Struct(&doc); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", name, err))
		return
	}

	existing, err := storage.GetProblem(ctx, db, doc.ID)
	if err != nil && !errors.Is(err, storage.ErrProblemNotFound) {
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", name, err))
		return
	}

	if existing != nil && existing.OwnerID == userID {
		draftID, err := draftUpdate(ctx, db, userID, existing.ID, doc)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", name, err))
			return
		}
		result.Drafted = append(result.Drafted, draftID)
		return
	}

	createdID, err := createImported(ctx, db, userID, doc)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", name, err))
		return
	}
	result.Created = append(result.Created, createdID)
}

// draftUpdate turns an imported document into a PENDING update draft against
// the caller's own problem. Only the latest imported version's details ride
// along; approval decides whether that produces a new version.
func draftUpdate(ctx context.Context, db *sql.DB, userID, problemID string, doc ProblemDocument) (string, error) {
	proposed := domain.ProposedData{
		Name:         doc.Name,
		Description:  doc.Description,
		AppType:      doc.AppType,
		Tags:         doc.Tags,
		Dependencies: doc.Dependencies,
	}
	if len(doc.Versions) > 0 {
		sorted := append([]VersionDocument(nil), doc.Versions...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version > sorted[j].Version })
		details := sorted[0].Details
		proposed.Details = &details
	}

	draft := &domain.Draft{
		ID:              uuid.New().String(),
		SolvedProblemID: &problemID,
		Proposed:        proposed,
		Status:          domain.DraftPending,
		CreatedByUserID: userID,
	}
	if err := storage.CreateDraft(ctx, db, draft); err != nil {
		return "", err
	}
	return draft.ID, nil
}

// createImported materializes a document as a new problem owned by the
// caller, keeping the document's id unless taken, and rebuilding the full
// version history in ascending order.
func createImported(ctx context.Context, db *sql.DB, userID string, doc ProblemDocument) (string, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	slug := core.Slugify(doc.ID)
	taken, err := storage.SlugExists(ctx, tx, slug)
	if err != nil {
		return "", err
	}
	id := core.UniqueSlug(slug, taken)

	err = storage.CreateProblemIn(ctx, tx, storage.NewProblem{
		ID:           id,
		Name:         doc.Name,
		Description:  doc.Description,
		AppType:      doc.AppType,
		OwnerID:      userID,
		Tags:         doc.Tags,
		Dependencies: doc.Dependencies,
	})
	if err != nil {
		return "", err
	}

	sorted := append([]VersionDocument(nil), doc.Versions...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })
	details := make([]string, 0, len(sorted))
	for _, v := range sorted {
		details = append(details, v.Details)
	}
	if err := storage.AppendVersionHistory(ctx, tx, id, details); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit import: %w", err)
	}
	return id, nil
}
