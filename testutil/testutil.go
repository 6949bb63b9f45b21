// Package testutil holds container fixtures shared by tests.
package testutil

import (
	"testing"

	"github.com/bobg/zdc"
)

// Items produces a minimal valid items payload:
// a "demo" multi-step container with one measurement item.
func Items() map[string]interface{} {
	return map[string]interface{}{
		zdc.ContentName: map[string]interface{}{
			"containerType": map[string]interface{}{"name": "demo"},
		},
		zdc.MetaName: map[string]interface{}{
			"author": "A",
			"email":  "a@x",
			"title":  "T",
		},
		"sim/dice.json": []int{2, 5, 1},
	}
}

// Build constructs a mutable container from Items,
// failing the test on error.
func Build(t *testing.T, opts ...zdc.Option) *zdc.Container {
	t.Helper()
	c, err := zdc.New(Items(), opts...)
	if err != nil {
		t.Fatal(err)
	}
	return c
}
