package session

import (
	"testing"

	"go.uber.org/goleak"

	"github.com/standardbeagle/idgrep/testhelpers"
)

func TestMain(m *testing.M) {
	testhelpers.RunFakeEngineIfRequested()
	goleak.VerifyTestMain(m)
}
