// api/models/share_models.go
package models

import "time"

// ShareRequest grants another user access to a problem or group.
type ShareRequest struct {
	ResourceType     string `json:"resourceType" binding:"required,oneof=SOLVED_PROBLEM GROUP"`
	ResourceID       string `json:"resourceId" binding:"required"`
	SharedWithUserID string `json:"sharedWithUserId" binding:"required"`
	Permission       string `json:"permission" binding:"required,oneof=READ WRITE"`
}

// UpdatePermissionRequest changes the permission level on an existing share.
type UpdatePermissionRequest struct {
	Permission string `json:"permission" binding:"required,oneof=READ WRITE"`
}

// ShareResponse is one share row, with the resource name resolved for
// display.
type ShareResponse struct {
	ID               string    `json:"id"`
	ResourceType     string    `json:"resourceType"`
	ResourceID       string    `json:"resourceId"`
	ResourceName     string    `json:"resourceName"`
	SharedByUserID   string    `json:"sharedByUserId"`
	SharedWithUserID string    `json:"sharedWithUserId"`
	Permission       string    `json:"permission"`
	CreatedAt        time.Time `json:"createdAt"`
}

// LookupUserResponse resolves an email to a shareable user id.
type LookupUserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}
