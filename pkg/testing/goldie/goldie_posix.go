//go:build !windows

package goldie

import (
	"testing"
)

// Assert compares actual with testdata/<name>.golden. Run the tests with -update to rewrite the file.
func Assert(t *testing.T, name string, actual []byte) {
	t.Helper()

	New(t).Assert(t, name, actual)
}
