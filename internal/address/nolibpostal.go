//go:build !libpostal

package address

import "github.com/mdm-linkage/internal/faults"

// LibpostalAvailable reports whether the binary was built against libpostal
const LibpostalAvailable = false

// Libpostal fails every line unless built with -tags libpostal
var Libpostal Parser = ParserFunc(func(line string) (Address, error) {
	return Address{}, faults.Malformed("address.libpostal", "libpostal support not compiled in (build with -tags libpostal)")
})
