package pdf_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"gorm.io/datatypes"

	"github.com/yeisme/vistoria/pkg/configs"
	"github.com/yeisme/vistoria/pkg/internal/model"
	"github.com/yeisme/vistoria/pkg/internal/pdf"
	"github.com/yeisme/vistoria/pkg/internal/repository"
	"github.com/yeisme/vistoria/pkg/internal/testutil"
)

func sampleDoc(photos int) *pdf.Document {
	approvedAt := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)
	approver := uint(2)

	rel := &model.Relatorio{
		ID:                  1,
		Numero:              "P001-R001",
		NumeroProjeto:       1,
		Titulo:              "Visita de inspeção estrutural",
		Descricao:           "Verificação das fundações.",
		Conteudo:            "Foram observadas fissuras na laje do térreo.",
		ObservacoesFinais:   "Retornar em duas semanas.",
		Categoria:           "Estrutura",
		Local:               "Bloco A",
		Status:              model.StatusApproved,
		ChecklistData:       datatypes.JSON(`{"itens":[{"item":"EPI","status":true},{"item":"Sinalização","status":false,"observacao":"faltando placas"}]}`),
		Acompanhantes:       datatypes.NewJSONType([]model.Acompanhante{{Nome: "Rui Costa", Funcao: "Mestre de obras"}}),
		Projeto:             &model.Obra{ID: 1, Numero: "P001", Nome: "Edifício Aurora", Endereco: "Rua A, 100"},
		Autor:               &model.Usuario{ID: 1, Nome: "Ana Souza"},
		Aprovador:           &model.Usuario{ID: 2, Nome: "Bruno Lima"},
		AprovadorID:         &approver,
		DataAprovacao:       &approvedAt,
		CreatedAt:           approvedAt.Add(-time.Hour),
		UpdatedAt:           approvedAt,
		ComentarioAprovacao: "",
	}

	doc := &pdf.Document{Report: rel}

	for i := 0; i < photos; i++ {
		p := pdf.Photo{ID: uint(i + 1), Legenda: "foto da fachada", Categoria: "Fachada", Local: "Norte", Ordem: i}
		if i%3 != 2 {
			p.Data = testutil.PNG(byte(i))
		}

		doc.Photos = append(doc.Photos, p)
	}

	return doc
}

func pageCount(out []byte) int {
	return bytes.Count(out, []byte("/Type /Page\n"))
}

func TestRenderProducesPDF(t *testing.T) {
	r := pdf.New(configs.Defaults().PDF)

	out, err := r.Render(sampleDoc(3))
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.HasPrefix(out, []byte("%PDF")) {
		t.Fatalf("output is not a PDF: %q", out[:min(len(out), 8)])
	}

	if got, want := pageCount(out), 1+pdf.PhotoPages(3); got != want {
		t.Fatalf("expected %d pages, got %d", want, got)
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	r := pdf.New(configs.Defaults().PDF)

	for _, n := range []int{0, 1, 2, 5, 6, 7} {
		a, err := r.Render(sampleDoc(n))
		if err != nil {
			t.Fatalf("%d photos: %v", n, err)
		}

		b, err := r.Render(sampleDoc(n))
		if err != nil {
			t.Fatalf("%d photos: %v", n, err)
		}

		if !bytes.Equal(a, b) {
			t.Fatalf("%d photos: renders differ (%d vs %d bytes)", n, len(a), len(b))
		}

		if pageCount(a) != 1+pdf.PhotoPages(n) {
			t.Fatalf("%d photos: expected %d pages, got %d", n, 1+pdf.PhotoPages(n), pageCount(a))
		}
	}
}

func TestRenderUndecodablePhotoUsesPlaceholder(t *testing.T) {
	doc := sampleDoc(1)
	doc.Photos[0].Data = []byte("definitely not an image")

	out, err := pdf.New(configs.Defaults().PDF).Render(doc)
	if err != nil {
		t.Fatal(err)
	}

	if pageCount(out) != 2 {
		t.Fatalf("placeholder must keep page count, got %d", pageCount(out))
	}
}

func TestPhotoPages(t *testing.T) {
	cases := map[int]int{0: 0, 1: 1, 2: 1, 3: 2, 6: 2, 7: 3, 10: 3, 11: 4}
	for n, want := range cases {
		if got := pdf.PhotoPages(n); got != want {
			t.Errorf("PhotoPages(%d) = %d, want %d", n, got, want)
		}
	}
}

func TestSafeFilename(t *testing.T) {
	cases := map[string]string{
		"P001-R001_Edifício Aurora": "P001-R001_Edificio_Aurora",
		"  ação / obra  ":           "acao_obra",
		"":                          "relatorio",
	}

	for in, want := range cases {
		if got := pdf.SafeFilename(in); got != want {
			t.Errorf("SafeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoadDocumentFallsBackToArtifact(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	fx := testutil.Seed(t, db)
	rel := testutil.Report(t, db, fx, model.StatusDraft)
	repo := repository.New(db)
	blobs := testutil.NewBlobs()
	data := testutil.PNG(5)

	photos := []*model.FotoRelatorio{
		{RelatorioID: rel.ID, Filename: "b.png", Ordem: 1},
		{RelatorioID: rel.ID, Filename: "a.png", Ordem: 0, ImagemData: data, ImagemHash: "h", ImagemSize: int64(len(data))},
	}

	for _, f := range photos {
		if err := repo.CreatePhoto(ctx, f); err != nil {
			t.Fatal(err)
		}
	}

	if err := blobs.Put(ctx, "uploads/b.png", data, "image/png"); err != nil {
		t.Fatal(err)
	}

	doc, err := pdf.LoadDocument(ctx, repo, blobs, rel.ID)
	if err != nil {
		t.Fatal(err)
	}

	if len(doc.Photos) != 2 || doc.Photos[0].Ordem != 0 || doc.Photos[1].Ordem != 1 {
		t.Fatalf("photos not ordered: %+v", doc.Photos)
	}

	if !bytes.Equal(doc.Photos[1].Data, data) {
		t.Fatal("artifact bytes not loaded")
	}

	if doc.Filename() != "P001-R001_Edificio_Aurora.pdf" {
		t.Fatalf("unexpected filename %s", doc.Filename())
	}
}
