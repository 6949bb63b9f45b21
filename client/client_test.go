package client_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"

	"github.com/bobg/zdc"
	"github.com/bobg/zdc/client"
	"github.com/bobg/zdc/server"
	"github.com/bobg/zdc/server/storage/mem"
	"github.com/bobg/zdc/testutil"
)

func newFixture(t *testing.T) (alice, bob *client.Client, ts *httptest.Server) {
	t.Helper()

	srv := server.New(mem.New(), map[string]string{
		"alice-key": "alice",
		"bob-key":   "bob",
	})
	ts = httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	var err error
	alice, err = client.New(ts.URL, "alice-key")
	if err != nil {
		t.Fatal(err)
	}
	bob, err = client.New(ts.URL, "bob-key")
	if err != nil {
		t.Fatal(err)
	}
	return alice, bob, ts
}

func buildWith(t *testing.T, content map[string]interface{}) *zdc.Container {
	t.Helper()
	items := testutil.Items()
	items[zdc.ContentName] = content
	c, err := zdc.New(items)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestUploadDownload(t *testing.T) {
	alice, _, _ := newFixture(t)
	ctx := context.Background()

	c := testutil.Build(t)
	if err := alice.Upload(ctx, c); err != nil {
		t.Fatal(err)
	}
	if c.Mutable() {
		t.Error("uploading must seal the container")
	}

	got, err := alice.Download(ctx, c.UUID())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(c.Content(), got.Content()); diff != "" {
		t.Errorf("content mismatch (-want +got):\n%s", diff)
	}
	dice, err := got.Get("sim/dice.json")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]interface{}{2.0, 5.0, 1.0}, dice); diff != "" {
		t.Errorf("item mismatch (-want +got):\n%s", diff)
	}
}

func TestDownloadMissing(t *testing.T) {
	alice, _, _ := newFixture(t)

	_, err := alice.Download(context.Background(), "79dca2e6-74b1-4a21-8b9f-3f8a1d2c5e07")
	if !errors.Is(err, zdc.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestMultiStepOrdering(t *testing.T) {
	alice, _, _ := newFixture(t)
	ctx := context.Background()

	const id = "5e2f8b1c-9d4a-4c7e-8f0b-6a3d1e9c7b22"
	mk := func(modified string) *zdc.Container {
		return buildWith(t, map[string]interface{}{
			"uuid":          id,
			"containerType": map[string]interface{}{"name": "demo"},
			"created":       "2024-05-01T10:00:00Z",
			"modified":      modified,
			"complete":      false,
		})
	}

	if err := alice.Upload(ctx, mk("2024-05-01T10:00:00Z")); err != nil {
		t.Fatal(err)
	}

	// A non-increasing modification time is a stale write.
	err := alice.Upload(ctx, mk("2024-05-01T10:00:00Z"))
	if !errors.Is(err, zdc.ErrStaleWrite) {
		t.Errorf("got %v, want ErrStaleWrite", err)
	}
	err = alice.Upload(ctx, mk("2024-05-01T09:00:00Z"))
	if !errors.Is(err, zdc.ErrStaleWrite) {
		t.Errorf("got %v, want ErrStaleWrite", err)
	}

	// A strictly newer one fully replaces the remote copy.
	next := mk("2024-05-01T10:00:01Z")
	if err = next.Set("sim/extra.txt", "step 2"); err != nil {
		t.Fatal(err)
	}
	if err = alice.Upload(ctx, next); err != nil {
		t.Fatal(err)
	}

	got, err := alice.Download(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Contains("sim/extra.txt") {
		t.Error("replacement content not served")
	}
}

func TestCompleteIsTerminal(t *testing.T) {
	alice, _, _ := newFixture(t)
	ctx := context.Background()

	c := buildWith(t, map[string]interface{}{
		"containerType": map[string]interface{}{"name": "demo"},
		"complete":      true,
	})
	if err := alice.Upload(ctx, c); err != nil {
		t.Fatal(err)
	}

	err := alice.Upload(ctx, c)
	if !errors.Is(err, zdc.ErrImmutableRemote) {
		t.Errorf("got %v, want ErrImmutableRemote", err)
	}
}

func TestSupersession(t *testing.T) {
	alice, bob, _ := newFixture(t)
	ctx := context.Background()

	old := buildWith(t, map[string]interface{}{
		"containerType": map[string]interface{}{"name": "demo"},
		"complete":      true,
	})
	if err := alice.Upload(ctx, old); err != nil {
		t.Fatal(err)
	}

	mkSuccessor := func() *zdc.Container {
		c := testutil.Build(t)
		if err := c.SetReplaces(old.UUID()); err != nil {
			t.Fatal(err)
		}
		return c
	}

	// Only the creator may supersede.
	err := bob.Upload(ctx, mkSuccessor())
	if !errors.Is(err, zdc.ErrNotOwner) {
		t.Errorf("got %v, want ErrNotOwner", err)
	}

	successor := mkSuccessor()
	if err = alice.Upload(ctx, successor); err != nil {
		t.Fatal(err)
	}

	// Requesting the superseded identifier transparently
	// produces its replacement.
	got, err := alice.Download(ctx, old.UUID())
	if err != nil {
		t.Fatal(err)
	}
	if got.UUID() != successor.UUID() {
		t.Errorf("got %s, want %s", got.UUID(), successor.UUID())
	}
}

func TestStaticDedup(t *testing.T) {
	alice, _, _ := newFixture(t)
	ctx := context.Background()

	c1 := testutil.Build(t)
	if err := c1.Freeze(); err != nil {
		t.Fatal(err)
	}
	if err := alice.Upload(ctx, c1); err != nil {
		t.Fatal(err)
	}

	// An independently built container with identical content
	// freezes to the same hash and adopts the remote copy on upload.
	c2 := testutil.Build(t)
	if err := c2.Freeze(); err != nil {
		t.Fatal(err)
	}
	if c2.Content().Hash != c1.Content().Hash {
		t.Fatalf("hashes differ: %s vs %s", c1.Content().Hash, c2.Content().Hash)
	}
	if c2.UUID() == c1.UUID() {
		t.Fatal("fixture containers share a uuid before upload")
	}

	if err := alice.Upload(ctx, c2); err != nil {
		t.Fatal(err)
	}
	if c2.UUID() != c1.UUID() {
		t.Errorf("dedup did not adopt the remote identifier: %s vs %s", c2.UUID(), c1.UUID())
	}

	uuids, err := alice.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(uuids) != 1 {
		t.Errorf("dedup created a second remote entry: %v", uuids)
	}
}

func TestStaticDownloadCache(t *testing.T) {
	srv := server.New(mem.New(), map[string]string{"alice-key": "alice"})

	// Count archive fetches; identifier resolution does not touch this route.
	var fetches int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method == http.MethodGet && strings.HasPrefix(req.URL.Path, "/api/datasets/") {
			atomic.AddInt32(&fetches, 1)
		}
		srv.ServeHTTP(w, req)
	}))
	t.Cleanup(ts.Close)

	alice, err := client.New(ts.URL, "alice-key")
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	c := testutil.Build(t)
	if err = c.Freeze(); err != nil {
		t.Fatal(err)
	}
	if err = alice.Upload(ctx, c); err != nil {
		t.Fatal(err)
	}

	if _, err = alice.Download(ctx, c.UUID()); err != nil {
		t.Fatal(err)
	}
	if n := atomic.LoadInt32(&fetches); n != 1 {
		t.Fatalf("got %d archive fetches, want 1", n)
	}

	// Static archive bytes are immutable by hash;
	// a second download resolves the identifier remotely
	// but serves the archive from the cache.
	got, err := alice.Download(ctx, c.UUID())
	if err != nil {
		t.Fatal(err)
	}
	if got.UUID() != c.UUID() {
		t.Errorf("got %s, want %s", got.UUID(), c.UUID())
	}
	if n := atomic.LoadInt32(&fetches); n != 1 {
		t.Errorf("got %d archive fetches, want 1", n)
	}
}

func TestSupersededDownloadBypassesCache(t *testing.T) {
	alice, _, _ := newFixture(t)
	ctx := context.Background()

	c := testutil.Build(t)
	if err := c.Freeze(); err != nil {
		t.Fatal(err)
	}
	if err := alice.Upload(ctx, c); err != nil {
		t.Fatal(err)
	}
	if _, err := alice.Download(ctx, c.UUID()); err != nil {
		t.Fatal(err)
	}

	successor, err := c.Release()
	if err != nil {
		t.Fatal(err)
	}
	if err = successor.SetReplaces(c.UUID()); err != nil {
		t.Fatal(err)
	}
	if err = alice.Upload(ctx, successor); err != nil {
		t.Fatal(err)
	}

	// The replaces-chain is server-side state:
	// a cached copy of the superseded dataset
	// must not shadow its replacement.
	got, err := alice.Download(ctx, c.UUID())
	if err != nil {
		t.Fatal(err)
	}
	if got.UUID() != successor.UUID() {
		t.Errorf("got %s, want successor %s", got.UUID(), successor.UUID())
	}
}
