//go:build !linux

package infra

import "syscall"

// helperSysProcAttr returns nil: without a parent-death signal the helper
// relies on exiting when its stdin reaches EOF.
func helperSysProcAttr() *syscall.SysProcAttr {
	return nil
}
