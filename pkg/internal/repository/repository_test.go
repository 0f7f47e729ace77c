package repository_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/cespare/xxhash/v2"

	"github.com/yeisme/vistoria/pkg/errs"
	"github.com/yeisme/vistoria/pkg/internal/model"
	"github.com/yeisme/vistoria/pkg/internal/repository"
	"github.com/yeisme/vistoria/pkg/internal/testutil"
)

func createReport(t *testing.T, repo *repository.Repository, fx *testutil.Fixture) *model.Relatorio {
	t.Helper()

	rel, err := newReport(repo, fx)
	if err != nil {
		t.Fatalf("create report: %v", err)
	}

	return rel
}

func newReport(repo *repository.Repository, fx *testutil.Fixture) (*model.Relatorio, error) {
	ctx := context.Background()
	unlock := repository.LockProject(fx.Obra.ID)
	defer unlock()

	var rel *model.Relatorio

	err := repo.Transaction(ctx, func(tx *repository.Repository) error {
		n, numero, err := tx.AllocateNumber(ctx, fx.Obra)
		if err != nil {
			return err
		}

		rel = &model.Relatorio{
			ProjetoID:     fx.Obra.ID,
			NumeroProjeto: n,
			Numero:        numero,
			AutorID:       fx.Autor.ID,
			Status:        model.StatusDraft,
		}

		return tx.CreateReport(ctx, rel)
	})

	return rel, err
}

func TestAllocateNumberSequential(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.Seed(t, db)
	repo := repository.New(db)

	first := createReport(t, repo, fx)
	second := createReport(t, repo, fx)

	if first.Numero != "P001-R001" || first.NumeroProjeto != 1 {
		t.Fatalf("unexpected first number %s/%d", first.Numero, first.NumeroProjeto)
	}

	if second.Numero != "P001-R002" || second.NumeroProjeto != 2 {
		t.Fatalf("unexpected second number %s/%d", second.Numero, second.NumeroProjeto)
	}
}

func TestAllocateNumberStartsAtNumeracaoInicial(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.Seed(t, db)
	repo := repository.New(db)

	other := &model.Obra{Numero: "OB-7", Nome: "Galpão", NumeracaoInicial: 40}
	if err := db.Create(other).Error; err != nil {
		t.Fatal(err)
	}

	fx.Obra = other

	rel := createReport(t, repo, fx)
	if rel.NumeroProjeto != 40 || rel.Numero != "OB-7-R040" {
		t.Fatalf("unexpected number %s/%d", rel.Numero, rel.NumeroProjeto)
	}
}

func TestAllocateNumberConcurrent(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.Seed(t, db)
	repo := repository.New(db)

	const n = 10

	var wg sync.WaitGroup

	results := make(chan *model.Relatorio, n)

	for i := 0; i < n; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			rel, err := newReport(repo, fx)
			if err != nil {
				t.Errorf("concurrent create: %v", err)

				return
			}

			results <- rel
		}()
	}

	wg.Wait()
	close(results)

	var nums []int

	seen := map[string]bool{}

	for rel := range results {
		nums = append(nums, rel.NumeroProjeto)

		if seen[rel.Numero] {
			t.Fatalf("duplicate numero %s", rel.Numero)
		}

		seen[rel.Numero] = true
	}

	if len(nums) != n {
		t.Fatalf("expected %d reports, got %d", n, len(nums))
	}

	sort.Ints(nums)

	for i, v := range nums {
		if v != i+1 {
			t.Fatalf("expected permutation of 1..%d, got %v", n, nums)
		}
	}
}

func TestPhotosOrdering(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	fx := testutil.Seed(t, db)
	repo := repository.New(db)
	rel := createReport(t, repo, fx)

	if m, err := repo.MaxOrdem(ctx, rel.ID); err != nil || m != -1 {
		t.Fatalf("expected -1 for empty report, got %d %v", m, err)
	}

	for _, ordem := range []int{5, 2, 2, 9} {
		f := &model.FotoRelatorio{RelatorioID: rel.ID, Ordem: ordem, Legenda: "x"}
		if err := repo.CreatePhoto(ctx, f); err != nil {
			t.Fatal(err)
		}
	}

	if m, _ := repo.MaxOrdem(ctx, rel.ID); m != 9 {
		t.Fatalf("expected max ordem 9, got %d", m)
	}

	if err := repo.Densify(ctx, rel.ID); err != nil {
		t.Fatal(err)
	}

	fotos, err := repo.ListPhotos(ctx, rel.ID, false)
	if err != nil {
		t.Fatal(err)
	}

	for i, f := range fotos {
		if f.Ordem != i {
			t.Fatalf("expected dense ordem, got %d at %d", f.Ordem, i)
		}
	}
}

func TestDeleteReportCascades(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	fx := testutil.Seed(t, db)
	repo := repository.New(db)
	rel := createReport(t, repo, fx)

	if err := repo.CreatePhoto(ctx, &model.FotoRelatorio{RelatorioID: rel.ID, Filename: "relatorio_1_a.png"}); err != nil {
		t.Fatal(err)
	}

	files, err := repo.DeleteReport(ctx, rel.ID)
	if err != nil {
		t.Fatal(err)
	}

	if len(files) != 1 || files[0] != "relatorio_1_a.png" {
		t.Fatalf("unexpected files %v", files)
	}

	if _, err := repo.GetReport(ctx, rel.ID); !errors.Is(err, errs.NotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	fotos, _ := repo.ListPhotos(ctx, rel.ID, false)
	if len(fotos) != 0 {
		t.Fatalf("photos left behind: %d", len(fotos))
	}
}

func TestAdvisoryKeyLayout(t *testing.T) {
	ns := xxhash.Sum64String("vistoria:numero_projeto") >> 32

	for _, id := range []uint{1, 7, 1 << 20} {
		key := uint64(repository.AdvisoryKey(id))
		if key>>32 != ns || uint32(key) != uint32(id) {
			t.Fatalf("key %x for project %d", key, id)
		}
	}

	if repository.AdvisoryKey(1) == repository.AdvisoryKey(2) {
		t.Fatal("projects share a lock key")
	}
}
