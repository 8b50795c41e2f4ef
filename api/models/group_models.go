// api/models/group_models.go
package models

import "time"

// CreateGroupRequest defines the body for creating a group.
type CreateGroupRequest struct {
	Name string `json:"name" binding:"required"`
}

// UpdateGroupRequest defines the body for renaming a group.
type UpdateGroupRequest struct {
	Name string `json:"name" binding:"required"`
}

// GroupMembershipRequest adds or removes a problem from a group.
type GroupMembershipRequest struct {
	SolvedProblemID string `json:"solvedProblemId" binding:"required"`
}

// GroupResponse is the view of a group, optionally with its member problems.
type GroupResponse struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	OwnerID        string            `json:"ownerId"`
	SolvedProblems []ProblemResponse `json:"solvedProblems,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
}
