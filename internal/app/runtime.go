package app

import (
	"os"
	"strconv"
)

const testModeEnv = "QUOTEDESK_TEST_MODE"

// InTestMode reports whether the binaries should exit before dialing Postgres,
// Redis and Gotenberg. Smoke tests set QUOTEDESK_TEST_MODE=true to check that
// a binary links and starts.
func InTestMode() bool {
	enabled, err := strconv.ParseBool(os.Getenv(testModeEnv))
	return err == nil && enabled
}
