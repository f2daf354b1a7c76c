// Package sqlmcp provides the version information for the sqlmcp gateway.
package sqlmcp

// Version is the current version of sqlmcp.
const Version = "0.1.0"

// GetVersion returns the current version string.
func GetVersion() string {
	return Version
}
