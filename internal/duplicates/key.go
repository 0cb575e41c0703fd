package duplicates

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rmonterroso/fieldledger-backend/pkg/enums"
	pkgerrors "github.com/rmonterroso/fieldledger-backend/pkg/errors"
)

// itemLines is the minimal view of an inventory payload the key needs.
type itemLines struct {
	Items []struct {
		ItemID   string          `json:"item_id"`
		Quantity decimal.Decimal `json:"quantity"`
	} `json:"items"`
}

// MatchKey collapses a payload into the string two candidate duplicates are
// compared by. Inventory kinds compare the order-independent multiset of
// (item, quantity) pairs; everything else compares the whole payload after
// canonicalization.
func MatchKey(eventType enums.EventType, payload json.RawMessage) (string, error) {
	if eventType.IsInventory() {
		return inventoryKey(payload)
	}
	return canonicalJSON(payload)
}

func inventoryKey(payload json.RawMessage) (string, error) {
	var lines itemLines
	if err := json.Unmarshal(payload, &lines); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable inventory payload")
	}
	pairs := make([]string, 0, len(lines.Items))
	for _, item := range lines.Items {
		qty, _ := item.Quantity.Float64()
		pairs = append(pairs, item.ItemID+":"+strconv.FormatFloat(qty, 'f', -1, 64))
	}
	sort.Strings(pairs)
	return strings.Join(pairs, "|"), nil
}

// canonicalJSON re-serializes the payload with sorted object keys and
// normalized number formatting, so "4.0" and "4" compare equal the same way
// they do after a parse/stringify round trip.
func canonicalJSON(payload json.RawMessage) (string, error) {
	var value any
	if err := json.Unmarshal(payload, &value); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable payload")
	}
	out, err := json.Marshal(value)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "canonicalizing payload")
	}
	return string(out), nil
}
