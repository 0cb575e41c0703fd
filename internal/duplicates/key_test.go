package duplicates

import (
	"encoding/json"
	"testing"

	"github.com/rmonterroso/fieldledger-backend/pkg/enums"
)

func TestMatchKeyInventoryIsOrderIndependent(t *testing.T) {
	a := json.RawMessage(`{"source":"purchase","vendor":"V","payment_method":"cash","items":[{"item_id":"cable-12","quantity":4},{"item_id":"tube-20","quantity":2}]}`)
	b := json.RawMessage(`{"source":"purchase","vendor":"V","payment_method":"cash","items":[{"item_id":"tube-20","quantity":2},{"item_id":"cable-12","quantity":4}]}`)

	keyA, err := MatchKey(enums.EventMaterialAdded, a)
	if err != nil {
		t.Fatalf("key a: %v", err)
	}
	keyB, err := MatchKey(enums.EventMaterialAdded, b)
	if err != nil {
		t.Fatalf("key b: %v", err)
	}
	if keyA != keyB {
		t.Fatalf("item order changed the key: %q vs %q", keyA, keyB)
	}
	if keyA != "cable-12:4|tube-20:2" {
		t.Fatalf("unexpected key %q", keyA)
	}
}

func TestMatchKeyInventoryIgnoresNonItemFields(t *testing.T) {
	a := json.RawMessage(`{"source":"purchase","vendor":"Ferretería A","payment_method":"cash","items":[{"item_id":"cable-12","quantity":4}]}`)
	b := json.RawMessage(`{"source":"warehouse","warehouse_id":"central","issuer":"Marta","items":[{"item_id":"cable-12","quantity":4}]}`)

	keyA, _ := MatchKey(enums.EventMaterialAdded, a)
	keyB, _ := MatchKey(enums.EventMaterialAdded, b)
	if keyA != keyB {
		t.Fatal("inventory key must depend only on item lines")
	}
}

func TestMatchKeyInventoryDistinguishesQuantities(t *testing.T) {
	a := json.RawMessage(`{"items":[{"item_id":"cable-12","quantity":4}]}`)
	b := json.RawMessage(`{"items":[{"item_id":"cable-12","quantity":5}]}`)

	keyA, _ := MatchKey(enums.EventMaterialAdded, a)
	keyB, _ := MatchKey(enums.EventMaterialAdded, b)
	if keyA == keyB {
		t.Fatal("different quantities must not collide")
	}
}

func TestMatchKeyNonInventoryComparesWholePayload(t *testing.T) {
	a := json.RawMessage(`{"category":"fuel","amount":120.75,"payment_method":"cash"}`)
	reordered := json.RawMessage(`{"payment_method":"cash","amount":120.75,"category":"fuel"}`)
	differentNotes := json.RawMessage(`{"category":"fuel","amount":120.75,"payment_method":"cash","notes":"second tank"}`)

	keyA, err := MatchKey(enums.EventExpenseLogged, a)
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	keyReordered, _ := MatchKey(enums.EventExpenseLogged, reordered)
	keyNotes, _ := MatchKey(enums.EventExpenseLogged, differentNotes)

	if keyA != keyReordered {
		t.Fatal("field order changed the canonical key")
	}
	if keyA == keyNotes {
		t.Fatal("differing notes must keep events distinct")
	}
}

func TestMatchKeyNormalizesNumberFormatting(t *testing.T) {
	a := json.RawMessage(`{"category":"fuel","amount":120.50,"payment_method":"cash"}`)
	b := json.RawMessage(`{"category":"fuel","amount":120.5,"payment_method":"cash"}`)

	keyA, _ := MatchKey(enums.EventExpenseLogged, a)
	keyB, _ := MatchKey(enums.EventExpenseLogged, b)
	if keyA != keyB {
		t.Fatalf("number formatting changed the key: %q vs %q", keyA, keyB)
	}
}

func TestMatchKeyRejectsMalformedPayload(t *testing.T) {
	if _, err := MatchKey(enums.EventExpenseLogged, json.RawMessage(`{"broken`)); err == nil {
		t.Fatal("expected malformed payload to error")
	}
}
