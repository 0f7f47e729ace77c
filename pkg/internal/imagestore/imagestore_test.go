package imagestore_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/yeisme/vistoria/pkg/configs"
	"github.com/yeisme/vistoria/pkg/errs"
	"github.com/yeisme/vistoria/pkg/internal/imagestore"
	"github.com/yeisme/vistoria/pkg/internal/model"
	"github.com/yeisme/vistoria/pkg/internal/repository"
	"github.com/yeisme/vistoria/pkg/internal/storage/blob"
	"github.com/yeisme/vistoria/pkg/internal/testutil"
)

func newStore(opts ...imagestore.Option) (*imagestore.Store, *blob.Local) {
	blobs := testutil.NewBlobs()

	return imagestore.New(blobs, testutil.NewKV(), configs.Defaults().Uploads, opts...), blobs
}

func ptr[T any](v T) *T { return &v }

func TestStageValidation(t *testing.T) {
	ctx := context.Background()
	cfg := configs.Defaults().Uploads
	cfg.MaxBytes = 1024
	store := imagestore.New(testutil.NewBlobs(), nil, cfg)

	if _, err := store.Stage(ctx, []byte("x"), imagestore.StageInput{Filename: "a.exe"}); errs.KindOf(err) != errs.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	if _, err := store.Stage(ctx, make([]byte, 2048), imagestore.StageInput{Filename: "a.png"}); errs.KindOf(err) != errs.KindOversize {
		t.Fatalf("expected oversize error, got %v", err)
	}

	objs, _ := store.Blobs().List(ctx, imagestore.TempDir+"/")
	if len(objs) != 0 {
		t.Fatalf("rejected uploads left artifacts: %v", objs)
	}
}

func TestStageAndFind(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore()
	data := testutil.PNG(1)

	up, err := store.Stage(ctx, data, imagestore.StageInput{Filename: "Fachada.PNG", Caption: "fachada"})
	if err != nil {
		t.Fatal(err)
	}

	if up.ID != strings.ToLower(up.ID) || up.Ext != "png" || up.MimeType != "image/png" {
		t.Fatalf("unexpected temp upload %+v", up)
	}

	if up.Key != imagestore.TempDir+"/"+up.ID+".png" {
		t.Fatalf("unexpected key %s", up.Key)
	}

	meta, ok := store.TempMeta(ctx, up.ID)
	if !ok || meta.Caption != "fachada" {
		t.Fatalf("temp metadata missing: %+v", meta)
	}

	tf, err := store.FindTemp(ctx, strings.ToUpper(up.ID))
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(tf.Data, data) || tf.Ext != "png" {
		t.Fatal("found temp does not match staged bytes")
	}

	if _, err := store.FindTemp(ctx, "../../etc"); errs.KindOf(err) != errs.KindTempMissing {
		t.Fatalf("expected temp missing, got %v", err)
	}
}

func TestPromoteDedupAndIdempotence(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	fx := testutil.Seed(t, db)
	rel := testutil.Report(t, db, fx, model.StatusDraft)
	repo := repository.New(db)
	store, blobs := newStore()
	data := testutil.PNG(7)

	up, err := store.Stage(ctx, data, imagestore.StageInput{Filename: "a.png"})
	if err != nil {
		t.Fatal(err)
	}

	first, err := store.Promote(ctx, repo, up.ID, rel.ID, imagestore.PhotoMeta{Legenda: ptr("fachada")})
	if err != nil {
		t.Fatal(err)
	}

	if first.Reused || first.Photo.Ordem != 0 || first.Photo.Legenda != "fachada" {
		t.Fatalf("unexpected first promotion %+v", first.Photo)
	}

	if first.Photo.ImagemHash != imagestore.Hash(data) || first.Photo.ImagemSize != int64(len(data)) {
		t.Fatal("hash or size mismatch")
	}

	if !strings.HasPrefix(first.Photo.Filename, "relatorio_") || !strings.HasSuffix(first.Photo.Filename, "_"+up.ID+".png") {
		t.Fatalf("unexpected final name %s", first.Photo.Filename)
	}

	if ok, _ := blobs.Exists(ctx, imagestore.PhotoKey(first.Photo.Filename)); !ok {
		t.Fatal("final artifact not written")
	}

	store.DiscardTemp(ctx, first.Temp)

	again, err := store.Promote(ctx, repo, up.ID, rel.ID, imagestore.PhotoMeta{})
	if err != nil {
		t.Fatalf("second promotion: %v", err)
	}

	if !again.Reused || again.Photo.ID != first.Photo.ID || again.Temp != nil {
		t.Fatalf("second promotion should reuse photo %d, got %+v", first.Photo.ID, again)
	}

	dup, err := store.Stage(ctx, data, imagestore.StageInput{Filename: "copy.png"})
	if err != nil {
		t.Fatal(err)
	}

	res, err := store.Promote(ctx, repo, dup.ID, rel.ID, imagestore.PhotoMeta{Legenda: ptr("nova")})
	if err != nil {
		t.Fatal(err)
	}

	if !res.Reused || res.Photo.ID != first.Photo.ID || res.Photo.Legenda != "nova" {
		t.Fatalf("identical bytes should reuse photo, got %+v", res.Photo)
	}

	store.DiscardTemp(ctx, res.Temp)

	if ok, _ := blobs.Exists(ctx, dup.Key); ok {
		t.Fatal("duplicate temp not discarded")
	}

	fotos, _ := repo.ListPhotos(ctx, rel.ID, true)
	if len(fotos) != 1 {
		t.Fatalf("expected one photo, got %d", len(fotos))
	}

	if imagestore.Hash(fotos[0].ImagemData) != fotos[0].ImagemHash || int64(len(fotos[0].ImagemData)) != fotos[0].ImagemSize {
		t.Fatal("stored bytes do not round-trip")
	}
}

func TestPromoteMissingTemp(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.Seed(t, db)
	rel := testutil.Report(t, db, fx, model.StatusDraft)
	store, _ := newStore()

	_, err := store.Promote(context.Background(), repository.New(db), "01hzzzzzzzzzzzzzzzzzzzzzzz", rel.ID, imagestore.PhotoMeta{})
	if errs.KindOf(err) != errs.KindTempMissing {
		t.Fatalf("expected temp missing, got %v", err)
	}
}

func TestServeFallbacks(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	fx := testutil.Seed(t, db)
	rel := testutil.Report(t, db, fx, model.StatusDraft)
	repo := repository.New(db)
	store, blobs := newStore()
	data := testutil.PNG(3)

	onDisk := &model.FotoRelatorio{RelatorioID: rel.ID, Filename: "relatorio_1_disk.png"}
	missing := &model.FotoRelatorio{RelatorioID: rel.ID, Filename: "relatorio_1_gone.png", Ordem: 1}

	for _, f := range []*model.FotoRelatorio{onDisk, missing} {
		if err := repo.CreatePhoto(ctx, f); err != nil {
			t.Fatal(err)
		}
	}

	if err := blobs.Put(ctx, imagestore.PhotoKey(onDisk.Filename), data, "image/png"); err != nil {
		t.Fatal(err)
	}

	got, err := store.Serve(ctx, repo, onDisk.ID)
	if err != nil || !bytes.Equal(got.Data, data) || got.Placeholder {
		t.Fatalf("expected disk bytes, got %v %v", got, err)
	}

	ph, err := store.Serve(ctx, repo, missing.ID)
	if err != nil || !ph.Placeholder || ph.MimeType != "image/png" {
		t.Fatalf("expected placeholder, got %v %v", ph, err)
	}

	if !bytes.Equal(ph.Data, imagestore.Placeholder()) {
		t.Fatal("placeholder is not deterministic")
	}

	if _, err := store.Serve(ctx, repo, 9999); errs.KindOf(err) != errs.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestBackfillFromFile(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	fx := testutil.Seed(t, db)
	rel := testutil.Report(t, db, fx, model.StatusDraft)
	repo := repository.New(db)
	store, blobs := newStore()
	data := testutil.PNG(9)

	if err := blobs.Put(ctx, "uploads/legacy.png", data, "image/png"); err != nil {
		t.Fatal(err)
	}

	res, err := store.Backfill(ctx, repo, rel.ID, "/uploads/legacy.png", imagestore.PhotoMeta{Local: ptr("térreo")})
	if err != nil {
		t.Fatal(err)
	}

	if res.Photo.Filename != "legacy.png" || res.Photo.ImagemHash != imagestore.Hash(data) || res.Photo.Local != "térreo" {
		t.Fatalf("unexpected backfilled photo %+v", res.Photo)
	}

	again, err := store.Backfill(ctx, repo, rel.ID, "legacy.png", imagestore.PhotoMeta{})
	if err != nil || again.Photo.ID != res.Photo.ID {
		t.Fatalf("backfill should be idempotent, got %v %v", again, err)
	}

	if _, err := store.Backfill(ctx, repo, rel.ID, "nope.png", imagestore.PhotoMeta{}); errs.KindOf(err) != errs.KindMediaMissing {
		t.Fatalf("expected media missing, got %v", err)
	}
}

func TestGC(t *testing.T) {
	ctx := context.Background()
	later := time.Now().Add(48 * time.Hour)
	store, blobs := newStore(imagestore.WithClock(func() time.Time { return later }))

	up, err := store.Stage(ctx, testutil.PNG(2), imagestore.StageInput{Filename: "x.jpg"})
	if err != nil {
		t.Fatal(err)
	}

	n, err := store.GC(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 collected, got %d %v", n, err)
	}

	if ok, _ := blobs.Exists(ctx, up.Key); ok {
		t.Fatal("expired temp still present")
	}
}

func TestMimeFor(t *testing.T) {
	cases := map[string]string{"jpg": "image/jpeg", ".JPEG": "image/jpeg", "webp": "image/webp", "gif": "image/gif", "bin": "application/octet-stream"}
	for ext, want := range cases {
		if got := imagestore.MimeFor(ext); got != want {
			t.Errorf("MimeFor(%q) = %q, want %q", ext, got, want)
		}
	}
}
