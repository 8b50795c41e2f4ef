// internal/access/access.go
package access

import (
	"context"
	"database/sql"
	"errors"

	"github.com/christopher-kapic/solved-problems-mcp/internal/auth"
	"github.com/christopher-kapic/solved-problems-mcp/internal/domain"
	"github.com/christopher-kapic/solved-problems-mcp/internal/storage"
)

// dedupe unions id lists into one set-ordered slice (first occurrence wins).
func dedupe(lists ...[]string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, list := range lists {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// AccessibleProblemIDs computes the set of solved problem ids a principal may
// read. For a session principal: owned problems, directly shared problems,
// and members of groups shared with the user. For an API-key principal: the
// key's explicit grants only (direct problem grants plus members of granted
// groups) — a key has zero implicit access, independent of the owning user's
// own shares. An empty set is a normal outcome, not an error.
func AccessibleProblemIDs(ctx context.Context, db *sql.DB, principal auth.Principal) ([]string, error) {
	if principal.IsAPIKey() {
		accesses, err := storage.ListAPIKeyAccesses(ctx, db, principal.APIKeyID)
		if err != nil {
			return nil, err
		}
		directIDs := []string{}
		groupIDs := []string{}
		for _, a := range accesses {
			switch a.Resource.Kind {
			case domain.ResourceSolvedProblem:
				directIDs = append(directIDs, a.Resource.ID)
			case domain.ResourceGroup:
				groupIDs = append(groupIDs, a.Resource.ID)
			}
		}
		memberIDs, err := storage.ListGroupMemberIDs(ctx, db, groupIDs)
		if err != nil {
			return nil, err
		}
		return dedupe(directIDs, memberIDs), nil
	}

	ownedIDs, err := storage.OwnedProblemIDs(ctx, db, principal.UserID)
	if err != nil {
		return nil, err
	}
	sharedIDs, err := storage.SharedResourceIDs(ctx, db, principal.UserID, domain.ResourceSolvedProblem)
	if err != nil {
		return nil, err
	}
	sharedGroupIDs, err := storage.SharedResourceIDs(ctx, db, principal.UserID, domain.ResourceGroup)
	if err != nil {
		return nil, err
	}
	memberIDs, err := storage.ListGroupMemberIDs(ctx, db, sharedGroupIDs)
	if err != nil {
		return nil, err
	}
	return dedupe(ownedIDs, sharedIDs, memberIDs), nil
}

// AccessibleGroupIDs computes the group ids a principal may read: owned plus
// directly shared groups for a session principal, granted groups for a key.
func AccessibleGroupIDs(ctx context.Context, db *sql.DB, principal auth.Principal) ([]string, error) {
	if principal.IsAPIKey() {
		accesses, err := storage.ListAPIKeyAccesses(ctx, db, principal.APIKeyID)
		if err != nil {
			return nil, err
		}
		groupIDs := []string{}
		for _, a := range accesses {
			if a.Resource.Kind == domain.ResourceGroup {
				groupIDs = append(groupIDs, a.Resource.ID)
			}
		}
		return dedupe(groupIDs), nil
	}

	ownedIDs, err := storage.OwnedGroupIDs(ctx, db, principal.UserID)
	if err != nil {
		return nil, err
	}
	sharedIDs, err := storage.SharedResourceIDs(ctx, db, principal.UserID, domain.ResourceGroup)
	if err != nil {
		return nil, err
	}
	return dedupe(ownedIDs, sharedIDs), nil
}

// CanReadProblem reports whether the problem is in the principal's
// accessible set. A missing problem reads as "no".
func CanReadProblem(ctx context.Context, db *sql.DB, principal auth.Principal, problemID string) (bool, error) {
	ids, err := AccessibleProblemIDs(ctx, db, principal)
	if err != nil {
		return false, err
	}
	for _, id := range ids {
		if id == problemID {
			return true, nil
		}
	}
	return false, nil
}

// CanWriteProblem reports whether a session user may mutate a problem:
// ownership, or a WRITE share on that exact problem. Group-inherited access
// is read-only and never grants write.
func CanWriteProblem(ctx context.Context, db *sql.DB, userID, problemID string) (bool, error) {
	problem, err := storage.GetProblem(ctx, db, problemID)
	if err != nil {
		if errors.Is(err, storage.ErrProblemNotFound) {
			return false, nil
		}
		return false, err
	}
	if problem.OwnerID == userID {
		return true, nil
	}
	return storage.HasWriteShare(ctx, db, userID, domain.ResourceRef{Kind: domain.ResourceSolvedProblem, ID: problemID})
}

// CanReadGroup reports whether the group is in the principal's accessible set.
func CanReadGroup(ctx context.Context, db *sql.DB, principal auth.Principal, groupID string) (bool, error) {
	ids, err := AccessibleGroupIDs(ctx, db, principal)
	if err != nil {
		return false, err
	}
	for _, id := range ids {
		if id == groupID {
			return true, nil
		}
	}
	return false, nil
}
