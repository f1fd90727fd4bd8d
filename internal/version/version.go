// ABOUTME: Build identity shared by the client CLI and the server
// ABOUTME: Version can be overridden at link time with -ldflags -X
package version

// Version is the release version
var Version = "0.1.0"

const (
	// Product is the product name reported by both binaries
	Product = "clocksync"

	// Manufacturer is reported alongside the product name
	Manufacturer = "Resonate Protocol"
)

// UserAgent returns "clocksync/<version>"
func UserAgent() string {
	return Product + "/" + Version
}
