package container

import (
	"bytes"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"howett.net/plist"
)

// ParseStrings decodes an Apple .strings resource of the form
//
//	/* comment */
//	"key" = "value";
//
// The content may be UTF-8 or BOM-prefixed UTF-16. Later duplicates of a key
// replace earlier ones.
func ParseStrings(data []byte) (map[string]string, error) {
	decoded, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
	if err != nil {
		return nil, err
	}

	out := map[string]string{}
	if len(bytes.TrimSpace(decoded)) == 0 {
		return out, nil
	}
	if _, err := plist.Unmarshal(decoded, &out); err != nil {
		return nil, err
	}
	return out, nil
}
