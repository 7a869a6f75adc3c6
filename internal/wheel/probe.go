package wheel

import (
	"fmt"

	"github.com/karalabe/usb"
)

// probeAttached reports whether a device with the given identity is
// present on the USB bus at all. Used only to sharpen the ErrNotFound
// diagnostics: a wheel that enumerates on the bus but yields no usable
// node is almost always a permission or driver problem, not a cabling
// one.
func probeAttached(vendorID, productID uint16) (bool, error) {
	infos, err := usb.Enumerate(vendorID, productID)
	if err != nil {
		return false, fmt.Errorf("usb enumerate: %w", err)
	}
	return len(infos) > 0, nil
}
