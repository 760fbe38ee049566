package cart

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// persistedValue is the second element of a persisted pair.
type persistedValue struct {
	Price    json.Number `json:"price"`
	Quantity int         `json:"quantity"`
}

// Serialize encodes items as an ordered JSON array of
// [name, {"price": number, "quantity": integer}] pairs.
func Serialize(items []Item) ([]byte, error) {
	pairs := make([][2]any, 0, len(items))
	for _, it := range items {
		pairs = append(pairs, [2]any{it.Name, persistedValue{
			Price:    json.Number(it.Price.String()),
			Quantity: it.Quantity,
		}})
	}
	return json.Marshal(pairs)
}

// Deserialize decodes a persisted blob. Any invalid row rejects the whole blob
// with ErrPersistedData. Rows missing price or quantity are treated as absent.
// Later duplicates overwrite earlier ones but keep the first position.
func Deserialize(blob []byte) ([]Item, error) {
	items, _, err := decode(blob)
	return items, err
}

func decode(blob []byte) ([]Item, int, error) {
	trimmed := bytes.TrimSpace(blob)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, 0, nil
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(trimmed, &rows); err != nil {
		return nil, 0, fmt.Errorf("decode cart: %w", ErrPersistedData)
	}
	items := make([]Item, 0, len(rows))
	index := make(map[string]int, len(rows))
	skipped := 0
	for i, raw := range rows {
		item, ok, err := decodeRow(raw)
		if err != nil {
			return nil, 0, fmt.Errorf("row %d: %w", i, err)
		}
		if !ok {
			skipped++
			continue
		}
		if pos, dup := index[item.Name]; dup {
			items[pos] = item
			continue
		}
		index[item.Name] = len(items)
		items = append(items, item)
	}
	return items, skipped, nil
}

func decodeRow(raw json.RawMessage) (Item, bool, error) {
	var pair []json.RawMessage
	if err := json.Unmarshal(raw, &pair); err != nil || len(pair) != 2 {
		return Item{}, false, fmt.Errorf("expected [name, value] pair: %w", ErrPersistedData)
	}
	var name string
	if err := json.Unmarshal(pair[0], &name); err != nil {
		return Item{}, false, fmt.Errorf("name must be a string: %w", ErrPersistedData)
	}
	if strings.TrimSpace(name) == "" {
		return Item{}, false, fmt.Errorf("name is empty: %w", ErrPersistedData)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(pair[1], &fields); err != nil {
		return Item{}, false, fmt.Errorf("value for %q must be an object: %w", name, ErrPersistedData)
	}
	rawPrice, hasPrice := presentField(fields, "price")
	rawQty, hasQty := presentField(fields, "quantity")
	if !hasPrice || !hasQty {
		return Item{}, false, nil
	}
	price, err := decodeNumber(rawPrice)
	if err != nil || price.IsNegative() {
		return Item{}, false, fmt.Errorf("price for %q must be a non-negative number: %w", name, ErrPersistedData)
	}
	qty, err := decodeNumber(rawQty)
	if err != nil || !qty.IsInteger() || qty.LessThan(decimal.NewFromInt(1)) || qty.GreaterThan(decimal.NewFromInt(MaxQuantity)) {
		return Item{}, false, fmt.Errorf("quantity for %q must be a positive integer: %w", name, ErrPersistedData)
	}
	return Item{Name: name, Price: price, Quantity: int(qty.IntPart())}, true, nil
}

func presentField(fields map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	raw, ok := fields[key]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, false
	}
	return raw, true
}

// decodeNumber accepts JSON number literals only; quoted numbers are rejected.
func decodeNumber(raw json.RawMessage) (decimal.Decimal, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return decimal.Decimal{}, err
	}
	n, ok := v.(json.Number)
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("not a number: %s", raw)
	}
	return decimal.NewFromString(n.String())
}
