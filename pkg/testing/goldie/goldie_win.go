//go:build windows

package goldie

import (
	"bytes"
	"testing"
)

// Assert compares actual with testdata/<name>.golden. Line endings are normalized since golden files
// are checked out with LF.
func Assert(t *testing.T, name string, actual []byte) {
	t.Helper()

	New(t).Assert(t, name, bytes.ReplaceAll(actual, []byte("\r\n"), []byte("\n")))
}
