package common

// File permission constants for consistent security across the application
const (
	// FilePermissionSecure is used for sensitive files (settings, vault, usage database)
	FilePermissionSecure = 0600

	// FilePermissionNormal is used for exported reports
	FilePermissionNormal = 0644

	// DirPermissionSecure is used for the application home and the vault directory
	DirPermissionSecure = 0700

	// DirPermissionNormal is used for clone parent directories
	DirPermissionNormal = 0755
)
