package zdc_test

import (
	"errors"
	"testing"

	"github.com/bobg/zdc"
	"github.com/bobg/zdc/testutil"
)

func TestContentHashDeterministic(t *testing.T) {
	c := testutil.Build(t)

	h1, err := c.ContentHash()
	if err != nil {
		t.Fatal(err)
	}
	h2, err := c.ContentHash()
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Errorf("hash not stable: %s vs %s", h1, h2)
	}
	if c.Mutable() {
		t.Error("computing the hash must seal the container")
	}
}

func TestHashIgnoresBookkeeping(t *testing.T) {
	// Two independent builds of the same payload have distinct
	// identifiers and timestamps but must collide on the content hash.
	c1 := testutil.Build(t)
	c2 := testutil.Build(t)
	if c1.UUID() == c2.UUID() {
		t.Fatal("fixture containers share a uuid")
	}

	h1, err := c1.ContentHash()
	if err != nil {
		t.Fatal(err)
	}
	h2, err := c2.ContentHash()
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Errorf("identical payloads hash differently: %s vs %s", h1, h2)
	}
}

func TestHashCoversPayload(t *testing.T) {
	c1 := testutil.Build(t)

	items := testutil.Items()
	items["sim/dice.json"] = []int{2, 5, 2}
	c2, err := zdc.New(items)
	if err != nil {
		t.Fatal(err)
	}

	h1, err := c1.ContentHash()
	if err != nil {
		t.Fatal(err)
	}
	h2, err := c2.ContentHash()
	if err != nil {
		t.Fatal(err)
	}
	if h1 == h2 {
		t.Error("different payloads produced the same hash")
	}
}

func TestFreeze(t *testing.T) {
	c := testutil.Build(t)
	if err := c.Freeze(); err != nil {
		t.Fatal(err)
	}

	content := c.Content()
	if !content.Static {
		t.Error("frozen container is not static")
	}
	if content.Hash == "" {
		t.Error("frozen container has no hash")
	}
	if c.Mutable() {
		t.Error("frozen container is still mutable")
	}

	if err := c.Freeze(); !errors.Is(err, zdc.ErrAlreadyStatic) {
		t.Errorf("got %v, want ErrAlreadyStatic", err)
	}

	if _, err := c.VerifyHash(); err != nil {
		t.Errorf("stored hash does not verify: %s", err)
	}
}
