//go:build unix

package identity

import (
	"runtime"
	"strings"

	"golang.org/x/sys/unix"
)

// osNameRelease returns "<sysname> <release>", e.g. "Linux 6.8.0-45-generic"
func osNameRelease() string {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return runtime.GOOS
	}
	sysname := unix.ByteSliceToString(uts.Sysname[:])
	release := unix.ByteSliceToString(uts.Release[:])
	return strings.TrimSpace(sysname + " " + release)
}
