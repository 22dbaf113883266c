//go:build libpostal

package address

import (
	"strings"

	postal "github.com/openvenues/gopostal/parser"

	"github.com/mdm-linkage/internal/faults"
)

// LibpostalAvailable reports whether the binary was built against libpostal
const LibpostalAvailable = true

// Libpostal parses lines with the libpostal address model
var Libpostal Parser = ParserFunc(parseLibpostal)

func parseLibpostal(line string) (Address, error) {
	var houseNumber, road, zip string
	var addr Address

	for _, c := range postal.ParseAddress(line) {
		value := strings.ToUpper(strings.TrimSpace(c.Value))
		switch c.Label {
		case "house_number":
			houseNumber = value
		case "road":
			road = value
		case "city":
			addr.City = value
		case "state":
			addr.State = value
		case "postcode":
			zip = value
		}
	}

	if addr.City == "" || addr.State == "" || zip == "" {
		return Address{}, faults.Malformed("address.libpostal", "missing city, state or postcode in %q", line)
	}

	addr.Street = strings.TrimSpace(houseNumber + " " + road)
	if i := strings.IndexByte(zip, '-'); i != -1 {
		addr.Zip5, addr.Zip4 = zip[:i], zip[i+1:]
	} else {
		addr.Zip5 = zip
	}
	addr.Zip5 = PadZip5(addr.Zip5)
	return addr, nil
}
