//go:build linux

package infra

import "syscall"

// helperSysProcAttr has the kernel kill overlay helpers when applock dies,
// so a crash never leaves the screen covered.
func helperSysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Pdeathsig: syscall.SIGKILL}
}
