// ABOUTME: Build identity constants for the audiotap binary
// ABOUTME: Reported by the -version flag and the metrics endpoint
package version

const (
	// Version is the semantic version of this build.
	Version = "0.1.0"

	// Product is the user-facing application name.
	Product = "audiotap"

	// Manufacturer identifies the project publishing this tool.
	Manufacturer = "audiotap project"
)
