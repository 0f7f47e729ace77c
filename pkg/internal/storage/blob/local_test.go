package blob_test

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"

	"github.com/yeisme/vistoria/pkg/internal/storage/blob"
)

func TestLocalPutGetDelete(t *testing.T) {
	ctx := context.Background()
	store := blob.NewFS(afero.NewMemMapFs())

	if err := store.Put(ctx, "uploads/temp/abc.png", []byte("png-bytes"), "image/png"); err != nil {
		t.Fatalf("put: %v", err)
	}

	data, err := store.Get(ctx, "/uploads/temp/abc.png")
	if err != nil || string(data) != "png-bytes" {
		t.Fatalf("get: %q, %v", data, err)
	}

	ok, err := store.Exists(ctx, "uploads/temp/abc.png")
	if err != nil || !ok {
		t.Fatalf("exists: %v %v", ok, err)
	}

	if err := store.Delete(ctx, "uploads/temp/abc.png"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := store.Get(ctx, "uploads/temp/abc.png"); !errors.Is(err, blob.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}

	// 重复删除不报错
	if err := store.Delete(ctx, "uploads/temp/abc.png"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

func TestLocalListPrefix(t *testing.T) {
	ctx := context.Background()
	store := blob.NewFS(afero.NewMemMapFs())

	for _, k := range []string{"uploads/temp/01a.png", "uploads/temp/01b.jpg", "uploads/temp/02c.gif", "uploads/x.png"} {
		if err := store.Put(ctx, k, []byte("x"), ""); err != nil {
			t.Fatal(err)
		}
	}

	objs, err := store.List(ctx, "uploads/temp/01")
	if err != nil {
		t.Fatal(err)
	}

	if len(objs) != 2 {
		t.Fatalf("expected 2 objects, got %d: %+v", len(objs), objs)
	}

	all, err := store.List(ctx, "uploads/temp/")
	if err != nil {
		t.Fatal(err)
	}

	if len(all) != 3 {
		t.Fatalf("expected 3 objects, got %d", len(all))
	}

	none, err := store.List(ctx, "missing/dir/x")
	if err != nil || len(none) != 0 {
		t.Fatalf("expected empty list, got %v %v", none, err)
	}
}

func TestCleanKey(t *testing.T) {
	cases := map[string]string{
		"/uploads/a.png":           "uploads/a.png",
		"uploads/../../etc/passwd": "etc/passwd",
		`uploads\temp\a.png`:       "uploads/temp/a.png",
	}

	for in, want := range cases {
		if got := blob.CleanKey(in); got != want {
			t.Errorf("CleanKey(%q) = %q, want %q", in, got, want)
		}
	}
}
