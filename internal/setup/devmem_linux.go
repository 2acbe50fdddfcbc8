//go:build linux

package setup

import "github.com/u-root/u-root/pkg/memio"

// readHSFS does a single 16-bit read of physical memory at addr.
var readHSFS = func(addr int64) error {
	var v memio.Uint16
	return memio.Read(addr, &v)
}
