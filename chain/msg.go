package chain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DecodeTagged splits an externally tagged JSON union of the form
// {"<tag>": <body>} into its tag and body. Exactly one tag must be present.
func DecodeTagged(raw []byte) (string, json.RawMessage, error) {
	var union map[string]json.RawMessage
	if err := json.Unmarshal(raw, &union); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	if len(union) != 1 {
		return "", nil, fmt.Errorf("%w: expected exactly one variant, "+
			"got %d", ErrInvalidMessage, len(union))
	}

	for tag, body := range union {
		return tag, body, nil
	}

	// Not reached, the map has exactly one entry.
	return "", nil, ErrInvalidMessage
}

// DecodeStrict decodes a JSON body into v, rejecting unknown fields.
func DecodeStrict(body []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}

	return nil
}

// EncodeTagged encodes body as the variant tag of an externally tagged
// union.
func EncodeTagged(tag string, body interface{}) ([]byte, error) {
	return json.Marshal(map[string]interface{}{tag: body})
}

// UnknownVariant returns the error for a union variant a contract doesn't
// know.
func UnknownVariant(tag string) error {
	return fmt.Errorf("%w: unknown variant %q", ErrInvalidMessage, tag)
}
