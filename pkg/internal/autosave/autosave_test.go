package autosave_test

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"testing"

	"github.com/yeisme/vistoria/pkg/configs"
	"github.com/yeisme/vistoria/pkg/errs"
	"github.com/yeisme/vistoria/pkg/internal/autosave"
	"github.com/yeisme/vistoria/pkg/internal/imagestore"
	"github.com/yeisme/vistoria/pkg/internal/model"
	"github.com/yeisme/vistoria/pkg/internal/repository"
	"github.com/yeisme/vistoria/pkg/internal/testutil"
	"github.com/yeisme/vistoria/pkg/internal/workflow"
)

type env struct {
	fx     *testutil.Fixture
	repo   *repository.Repository
	images *imagestore.Store
	coord  *autosave.Coordinator
	author workflow.Actor
}

func newEnv(t *testing.T) *env {
	t.Helper()

	db := testutil.NewDB(t)
	fx := testutil.Seed(t, db)
	repo := repository.New(db)
	images := imagestore.New(testutil.NewBlobs(), testutil.NewKV(), configs.Defaults().Uploads)
	policy := workflow.NewPolicy(configs.Defaults().Workflow)

	return &env{
		fx:     fx,
		repo:   repo,
		images: images,
		coord:  autosave.New(repo, images, policy),
		author: workflow.Actor{UserID: fx.Autor.ID, Email: fx.Autor.Email},
	}
}

func parse(t *testing.T, body string) *autosave.Input {
	t.Helper()

	in, err := autosave.ParseInput([]byte(body))
	if err != nil {
		t.Fatalf("parse %s: %v", body, err)
	}

	return in
}

func TestCreateAndPhotoDelta(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	in := &autosave.Input{ProjetoID: e.fx.Obra.ID, Titulo: autosave.Set("Visita 1")}

	res, err := e.coord.Save(ctx, in, e.author)
	if err != nil {
		t.Fatal(err)
	}

	if !res.Created || res.Relatorio.Numero != "P001-R001" || len(res.Imagens) != 0 {
		t.Fatalf("unexpected create result %+v", res)
	}

	if res.Relatorio.Status != model.StatusDraft {
		t.Fatalf("new report should be a draft, got %s", res.Relatorio.Status)
	}

	up, err := e.images.Stage(ctx, testutil.PNG(1), imagestore.StageInput{Filename: "f.png"})
	if err != nil {
		t.Fatal(err)
	}

	ordem := 0
	caption := "fachada"
	in = &autosave.Input{
		ID:    res.RelatorioID,
		Fotos: []autosave.PhotoOp{{TempID: up.ID, Meta: imagestore.PhotoMeta{Legenda: &caption, Ordem: &ordem}}},
	}

	res, err = e.coord.Save(ctx, in, e.author)
	if err != nil {
		t.Fatal(err)
	}

	if len(res.Imagens) != 1 {
		t.Fatalf("expected one photo, got %d", len(res.Imagens))
	}

	img := res.Imagens[0]
	if img.Ordem != 0 || img.Caption != "fachada" || img.TempID != up.ID || img.URL == "" {
		t.Fatalf("unexpected photo %+v", img)
	}

	if ok, _ := e.images.Blobs().Exists(ctx, up.Key); ok {
		t.Fatal("temp upload not removed after commit")
	}

	rel, err := e.repo.GetReport(ctx, res.RelatorioID)
	if err != nil {
		t.Fatal(err)
	}

	if rel.Titulo != "Visita 1" || len(rel.Fotos) != 1 || rel.Fotos[0].Legenda != "fachada" {
		t.Fatalf("absent keys must not clear fields: %+v", rel)
	}

	served, err := e.images.Serve(ctx, e.repo, img.ID)
	if err != nil || served.Placeholder {
		t.Fatalf("photo url not resolvable: %v", err)
	}

	again, err := e.coord.Save(ctx, in, e.author)
	if err != nil {
		t.Fatalf("replayed autosave: %v", err)
	}

	if len(again.Imagens) != 1 || again.Imagens[0].ID != img.ID {
		t.Fatalf("replay must not add photos, got %+v", again.Imagens)
	}
}

func TestDuplicateBytesReuseExistingPhoto(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	rel := testutil.Report(t, e.repo.DB(), e.fx, model.StatusDraft)
	data := testutil.PNG(4)

	first, _ := e.images.Stage(ctx, data, imagestore.StageInput{Filename: "a.png"})

	res, err := e.coord.Save(ctx, &autosave.Input{ID: rel.ID, Fotos: []autosave.PhotoOp{{TempID: first.ID}}}, e.author)
	if err != nil {
		t.Fatal(err)
	}

	photoID := res.Imagens[0].ID

	second, _ := e.images.Stage(ctx, data, imagestore.StageInput{Filename: "b.png"})

	res, err = e.coord.Save(ctx, &autosave.Input{ID: rel.ID, Fotos: []autosave.PhotoOp{{TempID: second.ID}}}, e.author)
	if err != nil {
		t.Fatal(err)
	}

	if len(res.Imagens) != 1 || res.Imagens[0].ID != photoID {
		t.Fatalf("identical bytes produced a second row: %+v", res.Imagens)
	}

	if ok, _ := e.images.Blobs().Exists(ctx, second.Key); ok {
		t.Fatal("duplicate temp file not deleted")
	}
}

func TestPhotoOpsOrderingAndSkips(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	rel := testutil.Report(t, e.repo.DB(), e.fx, model.StatusDraft)

	var ops []autosave.PhotoOp

	for i := byte(0); i < 3; i++ {
		up, err := e.images.Stage(ctx, testutil.PNG(10+i), imagestore.StageInput{Filename: "x.jpg"})
		if err != nil {
			t.Fatal(err)
		}

		ops = append(ops, autosave.PhotoOp{TempID: up.ID})
	}

	ops = append(ops, autosave.PhotoOp{TempID: "01jzzzzzzzzzzzzzzzzzzzzzzz"})

	res, err := e.coord.Save(ctx, &autosave.Input{ID: rel.ID, Fotos: ops}, e.author)
	if err != nil {
		t.Fatal(err)
	}

	if len(res.Imagens) != 3 || len(res.Skipped) != 1 || res.Skipped[0].Index != 3 {
		t.Fatalf("unexpected result: %d photos, skipped %+v", len(res.Imagens), res.Skipped)
	}

	middle := res.Imagens[1].ID
	newOrdem := 0
	local := "cobertura"

	res, err = e.coord.Save(ctx, &autosave.Input{ID: rel.ID, Fotos: []autosave.PhotoOp{
		{ID: res.Imagens[0].ID, Delete: true},
		{ID: res.Imagens[2].ID, Meta: imagestore.PhotoMeta{Ordem: &newOrdem, Local: &local}},
	}}, e.author)
	if err != nil {
		t.Fatal(err)
	}

	if len(res.Imagens) != 2 {
		t.Fatalf("expected 2 photos after delete, got %d", len(res.Imagens))
	}

	for i, img := range res.Imagens {
		if img.Ordem != i {
			t.Fatalf("ordem not dense: %+v", res.Imagens)
		}
	}

	if res.Imagens[1].ID != middle || res.Imagens[0].Local != "cobertura" {
		t.Fatalf("unexpected order after update: %+v", res.Imagens)
	}
}

func TestExplicitOrdemTakesPosition(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	rel := testutil.Report(t, e.repo.DB(), e.fx, model.StatusDraft)

	stage := func(seed byte) string {
		up, err := e.images.Stage(ctx, testutil.PNG(seed), imagestore.StageInput{Filename: "x.png"})
		if err != nil {
			t.Fatal(err)
		}

		return up.ID
	}

	save := func(ops ...autosave.PhotoOp) []uint {
		t.Helper()

		res, err := e.coord.Save(ctx, &autosave.Input{ID: rel.ID, Fotos: ops}, e.author)
		if err != nil {
			t.Fatal(err)
		}

		ids := make([]uint, len(res.Imagens))
		for i, img := range res.Imagens {
			if img.Ordem != i {
				t.Fatalf("ordem not dense: %+v", res.Imagens)
			}

			ids[i] = img.ID
		}

		return ids
	}

	at := func(n int) *int { return &n }

	ids := save(autosave.PhotoOp{TempID: stage(40)}, autosave.PhotoOp{TempID: stage(41)})
	a, b := ids[0], ids[1]

	// 移到最前
	if got := save(autosave.PhotoOp{ID: b, Meta: imagestore.PhotoMeta{Ordem: at(0)}}); got[0] != b || got[1] != a {
		t.Fatalf("move to front: got %v, want [%d %d]", got, b, a)
	}

	// 插入到指定位置
	got := save(autosave.PhotoOp{TempID: stage(42), Meta: imagestore.PhotoMeta{Ordem: at(0)}})
	if len(got) != 3 || got[1] != b || got[2] != a {
		t.Fatalf("insert at 0: got %v", got)
	}

	c := got[0]

	// 移到末尾，超出范围的值落在最后
	if got := save(autosave.PhotoOp{ID: c, Meta: imagestore.PhotoMeta{Ordem: at(9)}}); got[0] != b || got[1] != a || got[2] != c {
		t.Fatalf("move to end: got %v", got)
	}
}

func TestEditGates(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	db := e.repo.DB()

	rejected := testutil.Report(t, db, e.fx, model.StatusRejected)

	res, err := e.coord.Save(ctx, &autosave.Input{ID: rejected.ID, Titulo: autosave.Set("refeito")}, e.author)
	if err != nil {
		t.Fatal(err)
	}

	if res.Relatorio.Status != model.StatusDraft {
		t.Fatalf("rejected report should return to draft, got %s", res.Relatorio.Status)
	}

	pending := testutil.Report(t, db, e.fx, model.StatusAwaitingApproval)

	res, err = e.coord.Save(ctx, &autosave.Input{ID: pending.ID, Titulo: autosave.Set("ajuste")}, e.author)
	if err != nil {
		t.Fatal(err)
	}

	if len(res.Transitions) != 1 || !res.Transitions[0].NotifyApprovers {
		t.Fatalf("pending edit should notify approvers: %+v", res.Transitions)
	}

	approved := testutil.Report(t, db, e.fx, model.StatusApproved)

	_, err = e.coord.Save(ctx, &autosave.Input{ID: approved.ID, Titulo: autosave.Set("x")}, e.author)
	if errs.KindOf(err) != errs.KindForbidden {
		t.Fatalf("author must not edit approved report, got %v", err)
	}

	admin := workflow.Actor{UserID: e.fx.Admin.ID, Role: "admin"}
	if _, err := e.coord.Save(ctx, &autosave.Input{ID: approved.ID, Titulo: autosave.Set("x")}, admin); err != nil {
		t.Fatalf("privileged edit of approved report: %v", err)
	}

	if _, err := e.coord.Save(ctx, &autosave.Input{ProjetoID: e.fx.Obra.ID}, workflow.Actor{}); errs.KindOf(err) != errs.KindForbidden {
		t.Fatalf("anonymous autosave should be forbidden, got %v", err)
	}
}

func TestAdvisorySubmit(t *testing.T) {
	e := newEnv(t)
	rel := testutil.Report(t, e.repo.DB(), e.fx, model.StatusDraft)

	in := parse(t, `{"id": "`+itoa(rel.ID)+`", "status": "aguardando_aprovacao"}`)

	res, err := e.coord.Save(context.Background(), in, e.author)
	if err != nil {
		t.Fatal(err)
	}

	if res.Relatorio.Status != model.StatusAwaitingApproval {
		t.Fatalf("expected submit through status hint, got %s", res.Relatorio.Status)
	}
}

func TestConcurrentCreates(t *testing.T) {
	e := newEnv(t)

	const n = 10

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		nums []int
		seen = map[string]bool{}
	)

	for i := 0; i < n; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			res, err := e.coord.Save(context.Background(), &autosave.Input{ProjetoID: e.fx.Obra.ID}, e.author)
			if err != nil {
				t.Errorf("create: %v", err)

				return
			}

			mu.Lock()
			defer mu.Unlock()

			nums = append(nums, res.Relatorio.NumeroProjeto)
			seen[res.Relatorio.Numero] = true
		}()
	}

	wg.Wait()

	sort.Ints(nums)

	if len(nums) != n || len(seen) != n {
		t.Fatalf("expected %d distinct reports, got %v", n, nums)
	}

	for i, v := range nums {
		if v != i+1 {
			t.Fatalf("numbers are not a permutation of 1..%d: %v", n, nums)
		}
	}
}

func TestParseInputNormalization(t *testing.T) {
	in := parse(t, `{
		"id": 3,
		"titulo": null,
		"checklist_data": "{\"itens\":[1,2]}",
		"acompanhantes": "[{\"nome\":\"Rui\",\"email\":\"r@x.com\"},\"Maria\"]",
		"latitude": "-23,55",
		"fotos": [{"id": "9", "deletar": "true"}, {"temp_id": "abc", "caption": "c", "ordem": "2"}, {"url": "/uploads/a.png"}]
	}`)

	if in.ID != 3 || !in.Titulo.Set || !in.Titulo.Null || in.Descricao.Set {
		t.Fatalf("unexpected scalar presence: %+v", in)
	}

	if in.Checklist.V != `{"itens":[1,2]}` {
		t.Fatalf("checklist not normalized: %q", in.Checklist.V)
	}

	if len(in.Acompanhantes.V) != 2 || in.Acompanhantes.V[1].Nome != "Maria" || in.Acompanhantes.V[0].Email != "r@x.com" {
		t.Fatalf("companions not normalized: %+v", in.Acompanhantes.V)
	}

	if in.Latitude.V != -23.55 {
		t.Fatalf("latitude: %v", in.Latitude.V)
	}

	kinds := []autosave.OpKind{autosave.OpDelete, autosave.OpInsertTemp, autosave.OpInsertFile}
	for i, want := range kinds {
		if got := in.Fotos[i].Kind(); got != want {
			t.Errorf("fotos[%d] kind = %s, want %s", i, got, want)
		}
	}

	if in.Fotos[1].Meta.Ordem == nil || *in.Fotos[1].Meta.Ordem != 2 || *in.Fotos[1].Meta.Legenda != "c" {
		t.Fatalf("photo meta not parsed: %+v", in.Fotos[1].Meta)
	}

	structured := parse(t, `{"checklist_data": {"ok": true}, "acompanhantes": [{"name": "Zé", "id": 7}]}`)
	if structured.Checklist.V != `{"ok": true}` || structured.Acompanhantes.V[0].ID != "7" {
		t.Fatalf("structured payloads: %+v", structured)
	}

	for _, bad := range []string{`not json`, `{"checklist_data": "{broken"}`, `{"fotos": [{"ordem": -1, "id": 1}]}`} {
		if _, err := autosave.ParseInput([]byte(bad)); errs.KindOf(err) != errs.KindValidation {
			t.Errorf("expected validation error for %s, got %v", bad, err)
		}
	}
}

func itoa(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
