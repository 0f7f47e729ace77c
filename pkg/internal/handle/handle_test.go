package handle_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"

	"github.com/yeisme/vistoria/pkg/api"
	"github.com/yeisme/vistoria/pkg/configs"
	"github.com/yeisme/vistoria/pkg/internal/imagestore"
	"github.com/yeisme/vistoria/pkg/internal/jobs"
	"github.com/yeisme/vistoria/pkg/internal/model"
	"github.com/yeisme/vistoria/pkg/internal/service"
	"github.com/yeisme/vistoria/pkg/internal/storage"
	"github.com/yeisme/vistoria/pkg/internal/storage/blob"
	"github.com/yeisme/vistoria/pkg/internal/storage/mq"
	"github.com/yeisme/vistoria/pkg/internal/testutil"
	"github.com/yeisme/vistoria/pkg/internal/types"
	"github.com/yeisme/vistoria/pkg/middleware"
	"github.com/yeisme/vistoria/pkg/scheduler"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type server struct {
	engine *gin.Engine
	fx     *testutil.Fixture
	blobs  blob.Store
}

func newServer(t *testing.T, tweak func(*configs.AppConfig)) *server {
	t.Helper()

	cfg := configs.Defaults()
	cfg.Mail.Enabled = false
	cfg.Mail.Async = false
	cfg.Mail.Pacing = 0

	if tweak != nil {
		tweak(&cfg)
	}

	db := testutil.NewDB(t)
	fx := testutil.Seed(t, db)
	blobs := testutil.NewBlobs()
	kvc := testutil.NewKV()
	bus := mq.NewMemory(16)

	svc := service.New(service.Deps{
		DB:     db,
		Blobs:  blobs,
		KV:     kvc,
		Events: bus,
		Config: &cfg,
		Now:    func() time.Time { return time.Date(2024, 3, 10, 14, 0, 0, 0, time.UTC) },
	})

	sched, err := scheduler.New(time.UTC)
	if err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() { _ = sched.Stop() })

	if err := jobs.RegisterCronJobs(sched, cfg.Uploads, svc.Uploads); err != nil {
		t.Fatal(err)
	}

	mgr := &storage.Manager{Blob: blobs, KV: kvc, MQ: bus}

	r := gin.New()
	r.Use(
		middleware.StorageMiddleware(mgr),
		middleware.ServicesMiddleware(svc),
		middleware.SchedulerMiddleware(sched),
		middleware.IdentityMiddleware(cfg.Auth, svc),
	)
	api.RegisterGroup(r, &cfg, svc)

	return &server{engine: r, fx: fx, blobs: blobs}
}

func (s *server) call(method, path string, user uint, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if user != 0 {
		req.Header.Set(middleware.HeaderUserID, strconv.FormatUint(uint64(user), 10))
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	return w
}

func (s *server) json(method, path string, user uint, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}

	return s.call(method, path, user, r, "application/json")
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	if err := sonic.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}

	return v
}

type envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func multipartBody(t *testing.T, filename string, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer

	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}

	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}

	_, _ = fw.Write(data)
	_ = mw.Close()

	return &buf, mw.FormDataContentType()
}

func (s *server) tempObjects(t *testing.T) int {
	t.Helper()

	objs, err := s.blobs.List(context.Background(), imagestore.TempDir+"/")
	if err != nil {
		t.Fatal(err)
	}

	return len(objs)
}

func TestRequiresIdentity(t *testing.T) {
	s := newServer(t, nil)

	w := s.json(http.MethodGet, "/api/relatorios/1", 0, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status %d", w.Code)
	}

	if env := decode[envelope](t, w); env.Success || env.Error == "" {
		t.Fatalf("unexpected envelope %+v", env)
	}
}

func TestStageUploadRejectsOversize(t *testing.T) {
	s := newServer(t, func(c *configs.AppConfig) { c.Uploads.MaxBytes = 1 << 20 })

	// 超过表单余量：在读取阶段即被截断
	body, ct := multipartBody(t, "grande.png", bytes.Repeat([]byte{0x89}, 3<<20), nil)

	w := s.call(http.MethodPost, "/api/uploads/temp", s.fx.Autor.ID, body, ct)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}

	// 在余量之内但超过单文件上限
	body, ct = multipartBody(t, "medio.png", bytes.Repeat([]byte{0x89}, (1<<20)+512), nil)

	w = s.call(http.MethodPost, "/api/uploads/temp", s.fx.Autor.ID, body, ct)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}

	if n := s.tempObjects(t); n != 0 {
		t.Fatalf("oversize upload left %d staged objects", n)
	}
}

func TestStageAndPreview(t *testing.T) {
	s := newServer(t, nil)
	png := testutil.PNG(3)

	body, ct := multipartBody(t, "frente.png", png, map[string]string{"caption": "Fachada", "local": "Bloco A"})

	w := s.call(http.MethodPost, "/api/uploads/temp", s.fx.Autor.ID, body, ct)
	if w.Code != http.StatusOK {
		t.Fatalf("stage: %d %s", w.Code, w.Body.String())
	}

	up := decode[struct {
		Success  bool   `json:"success"`
		TempID   string `json:"temp_id"`
		MimeType string `json:"mime_type"`
		Caption  string `json:"caption"`
	}](t, w)

	if !up.Success || up.TempID == "" || up.MimeType != "image/png" || up.Caption != "Fachada" {
		t.Fatalf("unexpected stage response %+v", up)
	}

	w = s.call(http.MethodGet, "/api/uploads/temp/"+up.TempID, s.fx.Autor.ID, nil, "")
	if w.Code != http.StatusOK || !bytes.Equal(w.Body.Bytes(), png) {
		t.Fatalf("preview: %d (%d bytes)", w.Code, w.Body.Len())
	}

	if cc := w.Header().Get("Cache-Control"); cc != "no-store" {
		t.Fatalf("preview cache-control %q", cc)
	}

	body, ct = multipartBody(t, "notas.txt", []byte("texto"), nil)
	if w = s.call(http.MethodPost, "/api/uploads/temp", s.fx.Autor.ID, body, ct); w.Code != http.StatusBadRequest {
		t.Fatalf("bad extension: %d %s", w.Code, w.Body.String())
	}
}

func (s *server) stage(t *testing.T, name string, png []byte) string {
	t.Helper()

	body, ct := multipartBody(t, name, png, nil)

	w := s.call(http.MethodPost, "/api/uploads/temp", s.fx.Autor.ID, body, ct)
	if w.Code != http.StatusOK {
		t.Fatalf("stage %s: %d %s", name, w.Code, w.Body.String())
	}

	return decode[struct {
		TempID string `json:"temp_id"`
	}](t, w).TempID
}

func TestDeletedPhotoNotServedFromCache(t *testing.T) {
	s := newServer(t, nil)
	author := s.fx.Autor.ID

	a, b := s.stage(t, "a.png", testutil.PNG(2)), s.stage(t, "b.png", testutil.PNG(4))

	w := s.json(http.MethodPost, "/api/relatorios/autosave", author,
		fmt.Sprintf(`{"projeto_id": %d, "fotos": [{"temp_id": %q}, {"temp_id": %q}]}`, s.fx.Obra.ID, a, b))
	if w.Code != http.StatusOK {
		t.Fatalf("autosave: %d %s", w.Code, w.Body.String())
	}

	saved := decode[struct {
		RelatorioID uint `json:"relatorio_id"`
		Imagens     []struct {
			ID uint `json:"id"`
		} `json:"imagens"`
	}](t, w)

	if len(saved.Imagens) != 2 {
		t.Fatalf("expected 2 photos, got %+v", saved.Imagens)
	}

	base := "/api/relatorios/" + strconv.FormatUint(uint64(saved.RelatorioID), 10)
	photo := func(id uint) string { return "/api/imagens/" + strconv.FormatUint(uint64(id), 10) }

	for _, img := range saved.Imagens {
		if w = s.call(http.MethodGet, photo(img.ID), author, nil, ""); w.Code != http.StatusOK || w.Header().Get("X-Cache") != "MISS" {
			t.Fatalf("first read of %d: %d %q", img.ID, w.Code, w.Header().Get("X-Cache"))
		}

		if w = s.call(http.MethodGet, photo(img.ID), author, nil, ""); w.Header().Get("X-Cache") != "HIT" {
			t.Fatalf("second read of %d not cached: %q", img.ID, w.Header().Get("X-Cache"))
		}
	}

	first, second := saved.Imagens[0].ID, saved.Imagens[1].ID

	if w = s.json(http.MethodDelete, base+"/imagens/"+strconv.FormatUint(uint64(first), 10), author, ""); w.Code != http.StatusOK {
		t.Fatalf("delete photo: %d %s", w.Code, w.Body.String())
	}

	if w = s.call(http.MethodGet, photo(first), author, nil, ""); w.Header().Get("X-Cache") == "HIT" {
		t.Fatalf("deleted photo replayed from cache (%d bytes)", w.Body.Len())
	}

	if w = s.call(http.MethodGet, photo(second), author, nil, ""); w.Header().Get("X-Cache") != "HIT" {
		t.Fatalf("sibling photo evicted: %q", w.Header().Get("X-Cache"))
	}

	if w = s.json(http.MethodDelete, base, author, ""); w.Code != http.StatusOK {
		t.Fatalf("delete report: %d %s", w.Code, w.Body.String())
	}

	if w = s.call(http.MethodGet, photo(second), author, nil, ""); w.Header().Get("X-Cache") == "HIT" {
		t.Fatalf("photo of deleted report replayed from cache (%d bytes)", w.Body.Len())
	}
}

func TestReportLifecycleOverHTTP(t *testing.T) {
	s := newServer(t, nil)
	author, judge := s.fx.Autor.ID, s.fx.Aprovador.ID

	w := s.json(http.MethodPost, "/api/relatorios/autosave", author,
		fmt.Sprintf(`{"projeto_id": %d, "titulo": "Visita técnica", "local": "Bloco A"}`, s.fx.Obra.ID))
	if w.Code != http.StatusOK {
		t.Fatalf("autosave: %d %s", w.Code, w.Body.String())
	}

	saved := decode[struct {
		RelatorioID uint `json:"relatorio_id"`
		Relatorio   struct {
			Numero string       `json:"numero"`
			Status model.Status `json:"status"`
		} `json:"relatorio"`
	}](t, w)

	if saved.RelatorioID == 0 || saved.Relatorio.Status != model.StatusDraft || saved.Relatorio.Numero != "P001-R001" {
		t.Fatalf("unexpected autosave %+v", saved)
	}

	base := "/api/relatorios/" + strconv.FormatUint(uint64(saved.RelatorioID), 10)

	if w = s.json(http.MethodPost, base+"/approve", judge, ""); w.Code != http.StatusConflict {
		t.Fatalf("approve draft: %d %s", w.Code, w.Body.String())
	}

	if w = s.json(http.MethodPost, base+"/submit-approval", judge, ""); w.Code != http.StatusForbidden {
		t.Fatalf("submit by stranger: %d %s", w.Code, w.Body.String())
	}

	w = s.json(http.MethodPost, base+"/submit-approval", author, "")
	if w.Code != http.StatusOK {
		t.Fatalf("submit: %d %s", w.Code, w.Body.String())
	}

	if st := decode[struct {
		Status string `json:"status"`
		Label  string `json:"status_label"`
	}](t, w); st.Status != string(model.StatusAwaitingApproval) || st.Label != "Aguardando aprovação" {
		t.Fatalf("unexpected submit response %+v", st)
	}

	if w = s.json(http.MethodPost, base+"/approve", author, ""); w.Code != http.StatusForbidden {
		t.Fatalf("approve by author: %d %s", w.Code, w.Body.String())
	}

	w = s.json(http.MethodPost, base+"/approve", judge, "")
	if w.Code != http.StatusOK {
		t.Fatalf("approve: %d %s", w.Code, w.Body.String())
	}

	if ap := decode[struct {
		Success bool         `json:"success"`
		Status  model.Status `json:"status"`
	}](t, w); !ap.Success || ap.Status != model.StatusApproved {
		t.Fatalf("unexpected approve response %+v", ap)
	}

	if w = s.json(http.MethodPost, base+"/approve", judge, ""); w.Code != http.StatusConflict {
		t.Fatalf("second approve: %d", w.Code)
	}

	w = s.call(http.MethodGet, "/relatorio/"+strconv.FormatUint(uint64(saved.RelatorioID), 10)+"/pdf", author, nil, "")
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "application/pdf" || !bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")) {
		t.Fatalf("pdf: %d %q", w.Code, w.Header().Get("Content-Type"))
	}

	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "P001-R001") {
		t.Fatalf("pdf disposition %q", cd)
	}

	if w = s.json(http.MethodGet, base+"/envios", author, ""); w.Code != http.StatusOK {
		t.Fatalf("envios: %d %s", w.Code, w.Body.String())
	}

	w = s.json(http.MethodGet, "/api/notificacoes", judge, "")
	if w.Code != http.StatusOK {
		t.Fatalf("notificacoes: %d %s", w.Code, w.Body.String())
	}

	if n := decode[struct {
		Notificacoes []model.Notificacao `json:"notificacoes"`
	}](t, w); len(n.Notificacoes) == 0 {
		t.Fatal("approver was not notified of the submission")
	}
}

func TestRejectInvalidTargets(t *testing.T) {
	s := newServer(t, nil)

	w := s.json(http.MethodPost, "/api/relatorios/abc/reject", s.fx.Aprovador.ID, `{}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad id: %d", w.Code)
	}

	w = s.json(http.MethodPost, "/api/relatorios/999/reject", s.fx.Aprovador.ID, `{"comentario_rejeicao": "falta foto"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing report: %d %s", w.Code, w.Body.String())
	}
}

func TestOpsRoutesArePrivileged(t *testing.T) {
	s := newServer(t, nil)

	if w := s.json(http.MethodGet, "/api/scheduler/jobs", s.fx.Autor.ID, ""); w.Code != http.StatusForbidden {
		t.Fatalf("author: %d", w.Code)
	}

	w := s.json(http.MethodGet, "/api/scheduler/jobs", s.fx.Admin.ID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("admin: %d %s", w.Code, w.Body.String())
	}

	list := decode[struct {
		Jobs []scheduler.JobInfo `json:"jobs"`
	}](t, w)
	if len(list.Jobs) != 1 || list.Jobs[0].Name != jobs.JobTempUploadsGC {
		t.Fatalf("unexpected jobs %+v", list.Jobs)
	}

	w = s.json(http.MethodPost, "/api/uploads/gc", s.fx.Admin.ID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("gc: %d %s", w.Code, w.Body.String())
	}

	if gc := decode[struct {
		Success bool `json:"success"`
		Removed int  `json:"removed"`
	}](t, w); !gc.Success || gc.Removed != 0 {
		t.Fatalf("unexpected gc %+v", gc)
	}
}

func TestHealthEndpoints(t *testing.T) {
	s := newServer(t, nil)

	for path, want := range map[string]int{
		"/api/health/kv":      http.StatusOK,
		"/api/health/mq":      http.StatusOK,
		"/api/health/storage": http.StatusOK,
		"/api/health/db":      http.StatusServiceUnavailable,
	} {
		if w := s.json(http.MethodGet, path, 0, ""); w.Code != want {
			t.Fatalf("%s: %d, want %d (%s)", path, w.Code, want, w.Body.String())
		}
	}

	w := s.json(http.MethodGet, "/api/health", 0, "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("summary: %d", w.Code)
	}

	sum := decode[types.HealthSummary](t, w)
	if sum.Status != "unhealthy" || len(sum.Components) != 4 || sum.Components[0].Component != "db" ||
		sum.Components[0].Status != "unhealthy" || sum.Components[2].Status != "ok" {
		t.Fatalf("unexpected summary %+v", sum)
	}
}
