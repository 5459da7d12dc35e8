// Package guard flips the process into test mode when imported, so packages
// that cannot import the root testing package still skip runtime side effects.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("TRACKFIT_TEST_MODE") == "" {
			_ = os.Setenv("TRACKFIT_TEST_MODE", "1")
		}
	})
}
