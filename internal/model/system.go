package model

// VersionInfo contains version and feature information for the application.
type VersionInfo struct {
	AppVersion      string          `json:"appVersion"`
	DbVersion       int64           `json:"dbVersion"`
	Features        map[string]bool `json:"features"`
	MigrationNeeded bool            `json:"migrationNeeded"`
}
