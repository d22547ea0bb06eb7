// Package constants defines application-wide constants and version information.
package constants

import "runtime"

// Version holds the application version information
const Version = "1.2-" + runtime.GOOS + "/" + runtime.GOARCH

// ServerHeader is sent with every REST response
const ServerHeader = "daylight/" + Version
