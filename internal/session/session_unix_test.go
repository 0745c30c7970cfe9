//go:build unix

package session

import (
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

// assertProcessGone checks that pid was reaped, not left as an orphan or zombie
func assertProcessGone(t *testing.T, pid int) {
	t.Helper()
	err := syscall.Kill(pid, 0)
	assert.ErrorIs(t, err, syscall.ESRCH, "engine pid %d still exists", pid)
}
