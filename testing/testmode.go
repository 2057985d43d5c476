// Package testing holds helpers shared by binary smoke tests.
package testing

import (
	"os"
	"sync"

	"github.com/catintel/catintel/internal/app"
)

var once sync.Once

// EnableTestMode sets CATINTEL_TEST_MODE so binaries return before touching
// Postgres, Redis or the network.
func EnableTestMode() {
	once.Do(func() {
		_ = os.Setenv("CATINTEL_TEST_MODE", "1")
	})
	app.RefreshTestMode()
}
