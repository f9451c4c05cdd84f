package resolver

import (
	"encoding/json"
	"fmt"
	"strings"
)

// immutablesJSON are the fields of the JSON form of the immutables the
// resolver reads. Clients send either spelling of the order hash.
type immutablesJSON struct {
	OrderHash      string `json:"orderHash"`
	OrderHashSnake string `json:"order_hash"`
}

// ParseImmutables extracts the order hash of the escrow from the immutables
// of a withdrawal or cancellation. The immutables are either the bare order
// hash or a JSON object carrying an orderHash or order_hash field. Other
// fields of the object are ignored.
func ParseImmutables(immutables string) (string, error) {
	immutables = strings.TrimSpace(immutables)
	if immutables == "" {
		return "", fmt.Errorf("%w: empty immutables", ErrInvalidOrder)
	}

	if !strings.HasPrefix(immutables, "{") {
		return immutables, nil
	}

	var fields immutablesJSON
	if err := json.Unmarshal([]byte(immutables), &fields); err != nil {
		return "", fmt.Errorf("%w: immutables: %v", ErrInvalidOrder,
			err)
	}

	switch {
	case fields.OrderHash != "":
		return fields.OrderHash, nil

	case fields.OrderHashSnake != "":
		return fields.OrderHashSnake, nil

	default:
		return "", fmt.Errorf("%w: immutables without order hash",
			ErrInvalidOrder)
	}
}
