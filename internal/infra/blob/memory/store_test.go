package memory

import (
	"context"
	"io"
	"strings"
	"testing"

	"dispatchbook/internal/blob/core"
)

func TestPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := New()

	info, err := store.Put(ctx, "reports/1/ride-log.json", strings.NewReader(`{"rows":[]}`), core.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"export_id": "1"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != int64(len(`{"rows":[]}`)) || info.ContentType != "application/json" {
		t.Fatalf("unexpected info: %+v", info)
	}

	got, rc, err := store.Get(ctx, "reports/1/ride-log.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = rc.Close() }()
	body, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(body) != `{"rows":[]}` {
		t.Fatalf("unexpected body %q", body)
	}
	if got.Metadata["export_id"] != "1" {
		t.Fatalf("metadata lost: %+v", got.Metadata)
	}
}

func TestPutRejectsExistingKey(t *testing.T) {
	ctx := context.Background()
	store := New()
	if _, err := store.Put(ctx, "a", strings.NewReader("1"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := store.Put(ctx, "a", strings.NewReader("2"), core.PutOptions{}); err == nil {
		t.Fatalf("expected create-only conflict")
	}
}

func TestHeadAndDelete(t *testing.T) {
	ctx := context.Background()
	store := New()
	if _, err := store.Put(ctx, "a", strings.NewReader("1"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}

	if _, err := store.Head(ctx, "a"); err != nil {
		t.Fatalf("head: %v", err)
	}
	if _, err := store.Head(ctx, "missing"); err == nil {
		t.Fatalf("expected head miss")
	}

	existed, err := store.Delete(ctx, "a")
	if err != nil || !existed {
		t.Fatalf("delete: existed=%v err=%v", existed, err)
	}
	existed, err = store.Delete(ctx, "a")
	if err != nil || existed {
		t.Fatalf("second delete: existed=%v err=%v", existed, err)
	}
}

func TestListFiltersByPrefixSorted(t *testing.T) {
	ctx := context.Background()
	store := New()
	for _, key := range []string{"reports/2/b", "reports/1/a", "exports/x"} {
		if _, err := store.Put(ctx, key, strings.NewReader("x"), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}

	infos, err := store.List(ctx, "reports/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 || infos[0].Key != "reports/1/a" || infos[1].Key != "reports/2/b" {
		t.Fatalf("unexpected listing: %+v", infos)
	}
}

func TestPresignURL(t *testing.T) {
	ctx := context.Background()
	store := New()
	url, err := store.PresignURL(ctx, "reports/1/a", core.SignedURLOptions{})
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	if url != "memory://blob/reports/1/a" {
		t.Fatalf("unexpected url %q", url)
	}
	if _, err := store.PresignURL(ctx, "reports/1/a", core.SignedURLOptions{Method: "PUT"}); err != core.ErrUnsupported {
		t.Fatalf("expected ErrUnsupported for PUT, got %v", err)
	}
}
