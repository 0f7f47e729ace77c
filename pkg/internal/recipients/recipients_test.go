package recipients_test

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"gorm.io/datatypes"

	"github.com/yeisme/vistoria/pkg/errs"
	"github.com/yeisme/vistoria/pkg/internal/model"
	"github.com/yeisme/vistoria/pkg/internal/recipients"
	"github.com/yeisme/vistoria/pkg/internal/repository"
	"github.com/yeisme/vistoria/pkg/internal/testutil"
)

const fixedCC = "relatorios@vistoria.app"

// fakeDir 内存目录.
type fakeDir struct {
	users    []model.Usuario
	contacts []model.ContatoObra
}

func (d *fakeDir) GetUser(_ context.Context, id uint) (*model.Usuario, error) {
	for i := range d.users {
		if d.users[i].ID == id {
			return &d.users[i], nil
		}
	}

	return nil, errs.New(errs.KindNotFound, "usuário %d", id)
}

func (d *fakeDir) ListUsers(context.Context) ([]model.Usuario, error) { return d.users, nil }

func (d *fakeDir) GetContact(_ context.Context, id uint) (*model.ContatoObra, error) {
	for i := range d.contacts {
		if d.contacts[i].ID == id {
			return &d.contacts[i], nil
		}
	}

	return nil, errs.New(errs.KindNotFound, "contato %d", id)
}

func (d *fakeDir) ListContacts(context.Context) ([]model.ContatoObra, error) { return d.contacts, nil }

func (d *fakeDir) ListProjectContacts(_ context.Context, projectID uint) ([]model.ContatoObra, error) {
	var out []model.ContatoObra

	for _, c := range d.contacts {
		if c.ObraID == projectID {
			out = append(out, c)
		}
	}

	return out, nil
}

func companions(list ...model.Acompanhante) datatypes.JSONType[[]model.Acompanhante] {
	return datatypes.NewJSONType(list)
}

func TestResolveAllSources(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.Seed(t, db)

	if err := db.Create(&model.ContatoObra{ObraID: fx.Obra.ID, Nome: "Diego", Email: "D@X.com"}).Error; err != nil {
		t.Fatal(err)
	}

	rel := testutil.Report(t, db, fx, model.StatusApproved)
	rel.AprovadorID = &fx.Aprovador.ID
	rel.Acompanhantes = companions(model.Acompanhante{Nome: "Carla", Email: "c@x.com"})

	res, err := recipients.New(repository.New(db), fixedCC).Resolve(context.Background(), rel)
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"a@x.com", "b@x.com", "c@x.com", "d@x.com", fixedCC}
	if !reflect.DeepEqual(res.Emails, want) || res.Total != 5 {
		t.Fatalf("got %v (total %d), want %v", res.Emails, res.Total, want)
	}

	if !reflect.DeepEqual(res.ByKind[recipients.KindAprovador], []string{"b@x.com", fixedCC}) {
		t.Fatalf("approver kind: %v", res.ByKind[recipients.KindAprovador])
	}

	if res.Names["a@x.com"] != "Ana Souza" {
		t.Fatalf("author name not recorded: %v", res.Names)
	}
}

func TestResolvePurity(t *testing.T) {
	dir := &fakeDir{
		users: []model.Usuario{
			{ID: 1, Nome: "Ana Souza", Email: "A@X.com"},
			{ID: 2, Nome: "Bruno Lima", Email: "b@x.com"},
			{ID: 3, Nome: "João Pereira", Email: "joao@x.com"},
		},
		contacts: []model.ContatoObra{
			{ID: 10, ObraID: 1, Nome: "Engenheiro residente", Email: " a@x.COM "},
			{ID: 11, ObraID: 2, Nome: "Marta Ribeiro", Email: "marta@x.com"},
		},
	}

	approver := uint(2)
	rel := &model.Relatorio{
		ID:          1,
		ProjetoID:   1,
		AutorID:     1,
		AprovadorID: &approver,
		Acompanhantes: companions(
			model.Acompanhante{Nome: "x", Email: "sem-arroba"},
			model.Acompanhante{Nome: "Bruno", Email: "B@X.COM"},
			model.Acompanhante{Nome: "Contato", ID: "ec_11"},
			model.Acompanhante{Nome: "Usuário", ID: "3"},
			model.Acompanhante{Nome: "joao pereira"},
			model.Acompanhante{Nome: "Fulano Desconhecido"},
		),
	}

	res, err := recipients.New(dir, "").Resolve(context.Background(), rel)
	if err != nil {
		t.Fatal(err)
	}

	seen := map[string]bool{}

	for _, e := range res.Emails {
		if !strings.Contains(e, "@") || e != strings.ToLower(e) {
			t.Fatalf("impure address %q", e)
		}

		if seen[e] {
			t.Fatalf("duplicate address %q", e)
		}

		seen[e] = true
	}

	want := []string{"a@x.com", "b@x.com", "joao@x.com", "marta@x.com"}
	if !reflect.DeepEqual(res.Emails, want) {
		t.Fatalf("got %v, want %v", res.Emails, want)
	}
}

func TestFuzzyMatchThreshold(t *testing.T) {
	dir := &fakeDir{users: []model.Usuario{
		{ID: 1, Nome: "Fernanda Oliveira", Email: "fer@x.com"},
		{ID: 2, Nome: "Fernando Oliveira", Email: "fernando@x.com"},
	}}

	rel := &model.Relatorio{ID: 1, Acompanhantes: companions(model.Acompanhante{Nome: "Fernanda Olivera"})}

	res, _ := recipients.New(dir, "").Resolve(context.Background(), rel)
	if !reflect.DeepEqual(res.Emails, []string{"fer@x.com"}) {
		t.Fatalf("expected closest match, got %v", res.Emails)
	}

	rel.Acompanhantes = companions(model.Acompanhante{Nome: "Zeca"})

	res, _ = recipients.New(dir, "").Resolve(context.Background(), rel)
	if len(res.Emails) != 0 {
		t.Fatalf("dissimilar names must not match, got %v", res.Emails)
	}
}

func TestNameMatcher(t *testing.T) {
	m := recipients.NameMatcher{}

	if s := m.Similarity("JOSÉ  da Silva", "jose da silva"); s != 1 {
		t.Fatalf("folded names should be identical, got %f", s)
	}

	if s := m.Similarity("Ana", ""); s != 0 {
		t.Fatalf("empty name similarity %f", s)
	}
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{" A@X.Com ": "a@x.com", "a@": "", "@x": "", "a b@x": "", "a@@x": ""}
	for in, want := range cases {
		got, ok := recipients.Normalize(in)
		if got != want || ok != (want != "") {
			t.Errorf("Normalize(%q) = %q,%v", in, got, ok)
		}
	}
}
