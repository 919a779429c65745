package ldap

import (
	"strings"
	"unicode/utf8"
)

// binaryFormatters render binary Active Directory attributes as text.
var binaryFormatters = map[string]func([]byte) (string, error){
	"objectsid":  FormatSID,
	"objectguid": FormatGUID,
}

// FormatAttributeValue renders raw as text. objectSid and objectGUID get
// their usual string forms; other values are returned as-is when they are
// valid UTF-8 and hex-escaped otherwise.
func FormatAttributeValue(name string, raw []byte) string {
	if format, ok := binaryFormatters[strings.ToLower(name)]; ok {
		if s, err := format(raw); err == nil {
			return s
		}
	}

	if utf8.Valid(raw) {
		return string(raw)
	}

	return hexEscape(raw)
}

// hexEscape renders every byte of raw as \xx.
func hexEscape(raw []byte) string {
	const hexValues = "0123456789abcdef"

	var b strings.Builder
	b.Grow(3 * len(raw))
	for _, c := range raw {
		b.WriteByte('\\')
		b.WriteByte(hexValues[c>>4])
		b.WriteByte(hexValues[c&0x0f])
	}
	return b.String()
}

// GetFormattedAttribute is GetAttribute with binary values rendered by
// FormatAttributeValue.
func (c *Client) GetFormattedAttribute(name string) (string, bool) {
	raw, ok := c.GetRawAttribute(name)
	if !ok {
		return "", false
	}
	return FormatAttributeValue(name, raw), true
}
