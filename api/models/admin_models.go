// api/models/admin_models.go
package models

// UpdateSettingsRequest toggles site-wide switches. Nil means unchanged.
type UpdateSettingsRequest struct {
	SignupEnabled *bool `json:"signupEnabled"`
	ExportEnabled *bool `json:"exportEnabled"`
}

// SettingsResponse is the singleton site configuration.
type SettingsResponse struct {
	SignupEnabled bool `json:"signupEnabled"`
	ExportEnabled bool `json:"exportEnabled"`
}
