package cart

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EncodeItems serializes items in the storefront's local payload format.
func EncodeItems(items []Item) ([]byte, error) {
	if items == nil {
		items = []Item{}
	}
	return json.Marshal(items)
}

// DecodeItems parses a local payload. Entries without an id or with a
// non-positive quantity are dropped; duplicate ids are folded together.
func DecodeItems(data []byte) ([]Item, error) {
	var raw []Item
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode cart items: %w", err)
	}
	return normalize(raw), nil
}

func normalize(in []Item) []Item {
	out := make([]Item, 0, len(in))
	index := make(map[string]int, len(in))
	for _, it := range in {
		it.ID = strings.TrimSpace(it.ID)
		if it.ID == "" || it.Quantity <= 0 || it.Price < 0 {
			continue
		}
		if i, ok := index[it.ID]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		index[it.ID] = len(out)
		out = append(out, it)
	}
	return out
}
