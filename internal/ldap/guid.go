package ldap

import (
	"fmt"

	"github.com/google/uuid"
)

// GUIDBytesLength is the size of a binary objectGUID.
const GUIDBytesLength = 16

// FormatGUID converts a binary objectGUID to its hyphenated string form.
//
// Active Directory stores the first three GUID fields little-endian and the
// last eight bytes as-is, so they are swapped into RFC 4122 order first.
func FormatGUID(binaryGUID []byte) (string, error) {
	if len(binaryGUID) != GUIDBytesLength {
		return "", fmt.Errorf("invalid GUID byte length: expected %d, got %d", GUIDBytesLength, len(binaryGUID))
	}

	ordered := make([]byte, GUIDBytesLength)
	ordered[0], ordered[1], ordered[2], ordered[3] = binaryGUID[3], binaryGUID[2], binaryGUID[1], binaryGUID[0]
	ordered[4], ordered[5] = binaryGUID[5], binaryGUID[4]
	ordered[6], ordered[7] = binaryGUID[7], binaryGUID[6]
	copy(ordered[8:], binaryGUID[8:])

	id, err := uuid.FromBytes(ordered)
	if err != nil {
		return "", fmt.Errorf("failed to decode GUID: %w", err)
	}
	return id.String(), nil
}

// GUIDToBytes is the inverse of FormatGUID.
func GUIDToBytes(guid string) ([]byte, error) {
	id, err := uuid.Parse(guid)
	if err != nil {
		return nil, fmt.Errorf("invalid GUID %q: %w", guid, err)
	}

	b := id[:]
	return []byte{
		b[3], b[2], b[1], b[0],
		b[5], b[4],
		b[7], b[6],
		b[8], b[9], b[10], b[11], b[12], b[13], b[14], b[15],
	}, nil
}
