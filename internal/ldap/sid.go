package ldap

import (
	"fmt"

	"github.com/bwmarrin/go-objectsid"
)

// sidHeaderLength is revision, sub-authority count and the 48-bit identifier authority.
const sidHeaderLength = 8

// FormatSID converts a binary objectSid to its S-1-5-21-... string form.
func FormatSID(binarySID []byte) (string, error) {
	if len(binarySID) < sidHeaderLength {
		return "", fmt.Errorf("binary SID too short: %d bytes", len(binarySID))
	}

	subAuthorities := int(binarySID[1])
	if want := sidHeaderLength + 4*subAuthorities; len(binarySID) != want {
		return "", fmt.Errorf("binary SID length %d does not match %d sub-authorities", len(binarySID), subAuthorities)
	}

	return objectsid.Decode(binarySID).String(), nil
}
