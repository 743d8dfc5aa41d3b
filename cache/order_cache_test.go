package cache

import (
	"reflect"
	"testing"
)

func TestOrderEncoding(t *testing.T) {
	raw, err := encodeOrder([]string{"b", "a"})
	if err != nil || raw != `["b","a"]` {
		t.Fatalf("encodeOrder = %s, %v", raw, err)
	}
	if raw, _ := encodeOrder(nil); raw != "[]" {
		t.Errorf("nil order encodes as %s", raw)
	}

	orders, err := decodeOrders(map[string]string{
		"Fantasy.Acción.Combate": raw,
		"Fantasy.Magia":          "[]",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(orders["Fantasy.Acción.Combate"], []string{"b", "a"}) {
		t.Errorf("decoded = %v", orders)
	}
	if _, err := decodeOrders(map[string]string{"k": "{"}); err == nil {
		t.Error("expected error for a corrupt entry")
	}
}
