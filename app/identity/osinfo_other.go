//go:build !unix

package identity

import "runtime"

func osNameRelease() string {
	return runtime.GOOS
}
