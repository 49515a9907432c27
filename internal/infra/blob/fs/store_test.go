package fs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dispatchbook/internal/blob/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func TestPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	info, err := store.Put(ctx, "reports/1/finance.csv", strings.NewReader("category,total\nfuel,42\n"), core.PutOptions{
		ContentType: "text/csv",
		Metadata:    map[string]string{"template": "finance"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.ETag == "" || info.Size == 0 {
		t.Fatalf("unexpected info: %+v", info)
	}

	got, rc, err := store.Get(ctx, "reports/1/finance.csv")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = rc.Close() }()
	body, _ := io.ReadAll(rc)
	if !strings.HasPrefix(string(body), "category,total") {
		t.Fatalf("unexpected body %q", body)
	}
	if got.ContentType != "text/csv" || got.Metadata["template"] != "finance" {
		t.Fatalf("metadata sidecar not honored: %+v", got)
	}
	if got.ETag != info.ETag {
		t.Fatalf("etag mismatch: %q vs %q", got.ETag, info.ETag)
	}
}

func TestPutIsCreateOnly(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	if _, err := store.Put(ctx, "a.txt", strings.NewReader("1"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := store.Put(ctx, "a.txt", strings.NewReader("2"), core.PutOptions{}); err == nil {
		t.Fatalf("expected conflict on existing key")
	}
}

func TestKeySanitization(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for _, key := range []string{"", "  ", "../escape", "a/../../b", "/absolute"} {
		if _, err := store.Put(ctx, key, strings.NewReader("x"), core.PutOptions{}); err == nil {
			t.Fatalf("key %q must be rejected", key)
		}
	}
}

func TestDeleteRemovesSidecar(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	if _, err := store.Put(ctx, "a.txt", strings.NewReader("1"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}

	existed, err := store.Delete(ctx, "a.txt")
	if err != nil || !existed {
		t.Fatalf("delete: existed=%v err=%v", existed, err)
	}
	if _, err := os.Stat(filepath.Join(store.root, "a.txt.meta")); !os.IsNotExist(err) {
		t.Fatalf("meta sidecar must be removed, stat err=%v", err)
	}
	existed, err = store.Delete(ctx, "a.txt")
	if err != nil || existed {
		t.Fatalf("second delete: existed=%v err=%v", existed, err)
	}
}

func TestListWalksNestedKeys(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	for _, key := range []string{"reports/2/b.json", "reports/1/a.json", "exports/x.json"} {
		if _, err := store.Put(ctx, key, strings.NewReader("{}"), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}

	infos, err := store.List(ctx, "reports/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 || infos[0].Key != "reports/1/a.json" || infos[1].Key != "reports/2/b.json" {
		t.Fatalf("unexpected listing: %+v", infos)
	}

	all, err := store.List(ctx, "")
	if err != nil || len(all) != 3 {
		t.Fatalf("full listing: got %d err=%v", len(all), err)
	}
}

func TestPresignURLOnlySupportsGet(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	url, err := store.PresignURL(ctx, "a.txt", core.SignedURLOptions{Method: "GET"})
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	if url != "http://local.blob/a.txt" {
		t.Fatalf("unexpected url %q", url)
	}
	if _, err := store.PresignURL(ctx, "a.txt", core.SignedURLOptions{Method: "PUT"}); err != core.ErrUnsupported {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}
