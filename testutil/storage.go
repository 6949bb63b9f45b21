package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"

	"github.com/bobg/zdc"
	"github.com/bobg/zdc/server/storage"
)

// Storage permits testing a storage backend for conformance:
// round-tripping entries, static lookup, supersession links, and listing.
func Storage(ctx context.Context, t *testing.T, s storage.Store) {
	t.Helper()

	now := time.Now().UTC().Truncate(time.Second)
	entries := []*storage.Entry{
		{UUID: "aaa", Owner: "alice", Name: "demo", Created: now, Modified: now, Data: []byte("a")},
		{UUID: "bbb", Owner: "alice", Name: "demo", Hash: "h1", Static: true, Created: now, Modified: now, Data: []byte("b")},
		{UUID: "ccc", Owner: "bob", Name: "other", Complete: true, Created: now, Modified: now, Data: []byte("c")},
	}
	for _, e := range entries {
		if err := s.Put(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.Get(ctx, "bbb")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(entries[1], got); diff != "" {
		t.Errorf("entry mismatch (-want +got):\n%s", diff)
	}

	if _, err = s.Get(ctx, "zzz"); !errors.Is(err, zdc.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}

	// Replacement under the same identifier.
	repl := *entries[0]
	repl.Modified = now.Add(time.Second)
	repl.Data = []byte("a2")
	if err = s.Put(ctx, &repl); err != nil {
		t.Fatal(err)
	}
	got, err = s.Get(ctx, "aaa")
	if err != nil {
		t.Fatal(err)
	}
	if string(got.Data) != "a2" || !got.Modified.Equal(repl.Modified) {
		t.Errorf("replacement not stored: %+v", got)
	}

	// Static lookup by name and hash.
	got, err = s.FindStatic(ctx, "demo", "h1")
	if err != nil {
		t.Fatal(err)
	}
	if got.UUID != "bbb" {
		t.Errorf("got %s, want bbb", got.UUID)
	}
	if _, err = s.FindStatic(ctx, "demo", "h2"); !errors.Is(err, zdc.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
	if _, err = s.FindStatic(ctx, "other", ""); !errors.Is(err, zdc.ErrNotFound) {
		t.Errorf("non-static entry matched: %v", err)
	}

	// Supersession link.
	if err = s.SetReplacedBy(ctx, "aaa", "bbb"); err != nil {
		t.Fatal(err)
	}
	got, err = s.Get(ctx, "aaa")
	if err != nil {
		t.Fatal(err)
	}
	if got.ReplacedBy != "bbb" {
		t.Errorf("got replacedBy %q", got.ReplacedBy)
	}
	if err = s.SetReplacedBy(ctx, "zzz", "bbb"); !errors.Is(err, zdc.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}

	// Listing, in lexicographic order.
	var uuids []string
	err = s.List(ctx, "", func(uuid string) error {
		uuids = append(uuids, uuid)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"aaa", "bbb", "ccc"}, uuids); diff != "" {
		t.Errorf("list mismatch (-want +got):\n%s", diff)
	}

	uuids = nil
	err = s.List(ctx, "aaa", func(uuid string) error {
		uuids = append(uuids, uuid)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"bbb", "ccc"}, uuids); diff != "" {
		t.Errorf("list-after mismatch (-want +got):\n%s", diff)
	}
}
