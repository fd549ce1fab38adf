package fs

import (
	"context"
	"io"
	"strings"
	"testing"

	"trekcore/internal/blob/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func TestPutGetHeadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	put, err := s.Put(ctx, "reports/2026-09-01/totals.json", strings.NewReader("payload"), core.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"report": "totals"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if put.ETag == "" {
		t.Fatal("etag not computed")
	}

	head, err := s.Head(ctx, "reports/2026-09-01/totals.json")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if head.Size != int64(len("payload")) || head.ContentType != "application/json" {
		t.Fatalf("head = %+v", head)
	}
	if head.ETag != put.ETag {
		t.Fatalf("etag mismatch: %q vs %q", head.ETag, put.ETag)
	}

	_, rc, err := s.Get(ctx, "reports/2026-09-01/totals.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("content = %q", data)
	}
}

func TestPutIsCreateOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.Put(ctx, "k.json", strings.NewReader("a"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := s.Put(ctx, "k.json", strings.NewReader("b"), core.PutOptions{}); err == nil {
		t.Fatal("second put on same key must fail")
	}
}

func TestKeySanitization(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, key := range []string{"", "  ", "../escape", "/absolute", "a/../../b"} {
		if _, err := s.Put(ctx, key, strings.NewReader("x"), core.PutOptions{}); err == nil {
			t.Errorf("key %q accepted", key)
		}
	}
}

func TestListWalksNestedKeys(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, key := range []string{"reports/2026-09-01/a.json", "reports/2026-09-02/b.json", "misc/x.bin"} {
		if _, err := s.Put(ctx, key, strings.NewReader("x"), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	infos, err := s.List(ctx, "reports/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("list = %+v", infos)
	}
	if infos[0].Key != "reports/2026-09-01/a.json" || infos[1].Key != "reports/2026-09-02/b.json" {
		t.Fatalf("ordering = %+v", infos)
	}
}

func TestDeleteRemovesDataAndSidecar(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.Put(ctx, "k.json", strings.NewReader("x"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	existed, err := s.Delete(ctx, "k.json")
	if err != nil || !existed {
		t.Fatalf("delete = %v, %v", existed, err)
	}
	if infos, _ := s.List(ctx, ""); len(infos) != 0 {
		t.Fatalf("sidecar left behind: %+v", infos)
	}
	existed, err = s.Delete(ctx, "k.json")
	if err != nil || existed {
		t.Fatalf("second delete = %v, %v", existed, err)
	}
}

func TestPresignOnlySupportsGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	url, err := s.PresignURL(ctx, "k.json", core.SignedURLOptions{})
	if err != nil || url == "" {
		t.Fatalf("presign GET = %q, %v", url, err)
	}
	if _, err := s.PresignURL(ctx, "k.json", core.SignedURLOptions{Method: "PUT"}); err == nil {
		t.Fatal("PUT presign must be unsupported")
	}
}
