// Package guard enables test mode for any binary that imports it.
package guard

import (
	"os"
	"sync"
)

// TestModeEnv mirrors app.TestModeEnv without importing the app package.
const TestModeEnv = "MUTEXTALK_TEST_MODE"

var once sync.Once

// Enable sets the test mode flag unless it is already present.
func Enable() {
	once.Do(func() {
		if os.Getenv(TestModeEnv) == "" {
			_ = os.Setenv(TestModeEnv, "1")
		}
	})
}

func init() {
	Enable()
}
