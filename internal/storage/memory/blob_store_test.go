package memory

import (
	"bytes"
	"context"
	"testing"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte("content")
	uri, err := store.PutObject(context.Background(), "screenshots/a.png", "image/png", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("PutObject() error = %v", err)
	}
	if uri != "memory://screenshots/a.png" {
		t.Fatalf("unexpected uri %s", uri)
	}
	payload[0] = 'C'
	obj, ok := store.Get("screenshots/a.png")
	if !ok || string(obj.Data) != "content" || obj.ContentType != "image/png" {
		t.Fatalf("expected stored copy to be immutable, got %+v", obj)
	}
}

func TestBlobStoreOverwriteAndDelete(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	ctx := context.Background()
	if _, err := store.PutObject(ctx, "logos/logo_u1", "image/png", bytes.NewReader([]byte("one"))); err != nil {
		t.Fatal(err)
	}
	if _, err := store.PutObject(ctx, "logos/logo_u1", "image/png", bytes.NewReader([]byte("two"))); err != nil {
		t.Fatal(err)
	}
	if store.Len() != 1 {
		t.Fatalf("expected overwrite, got %d objects", store.Len())
	}
	if err := store.DeleteObject(ctx, "logos/logo_u1"); err != nil {
		t.Fatal(err)
	}
	if _, ok := store.Get("logos/logo_u1"); ok {
		t.Fatal("expected object removed")
	}
	if _, err := store.PutObject(ctx, "", "image/png", bytes.NewReader(nil)); err == nil {
		t.Fatal("expected error for empty path")
	}
}
