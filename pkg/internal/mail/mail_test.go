package mail_test

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"

	"github.com/yeisme/vistoria/pkg/configs"
	"github.com/yeisme/vistoria/pkg/internal/mail"
	"github.com/yeisme/vistoria/pkg/internal/model"
	"github.com/yeisme/vistoria/pkg/internal/recipients"
)

type capture struct {
	mu       sync.Mutex
	times    []time.Time
	messages []mail.Message
	auth     []string
}

func newServer(t *testing.T, c *capture, failFor string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		var msg mail.Message
		if err := sonic.Unmarshal(body, &msg); err != nil {
			w.WriteHeader(http.StatusBadRequest)

			return
		}

		c.mu.Lock()
		c.times = append(c.times, time.Now())
		c.messages = append(c.messages, msg)
		c.auth = append(c.auth, r.Header.Get("Authorization"))
		n := len(c.messages)
		c.mu.Unlock()

		if len(msg.To) == 1 && msg.To[0] == failFor {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"message":"invalid recipient"}`))

			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg-` + string(rune('0'+n)) + `"}`))
	}))
	t.Cleanup(srv.Close)

	return srv
}

func sampleReport() *model.Relatorio {
	visit := time.Date(2024, 3, 10, 2, 30, 0, 0, time.UTC)

	return &model.Relatorio{
		ID:            7,
		Numero:        "P001-R003",
		DataRelatorio: &visit,
		Projeto:       &model.Obra{ID: 1, Numero: "P001", Nome: "Edifício Aurora"},
		Autor:         &model.Usuario{ID: 1, Nome: "Ana Souza", Email: "a@x.com"},
	}
}

func config(url string) configs.MailConfig {
	return configs.MailConfig{
		Enabled: true,
		APIURL:  url,
		APIKey:  "re_test",
		From:    "Relatórios <relatorios@vistoria.app>",
		Timeout: 5 * time.Second,
		Pacing:  configs.DefaultMailPacing,
	}
}

func TestSendPacingAndPayload(t *testing.T) {
	c := &capture{}
	srv := newServer(t, c, "")

	d := mail.New(config(srv.URL))

	rcpt := &recipients.Result{
		Emails: []string{"a@x.com", "b@x.com", "c@x.com", "d@x.com", "relatorios@vistoria.app"},
		Names:  map[string]string{"b@x.com": "Bruno Lima"},
	}
	pdfBytes := []byte("%PDF-1.4 fake")

	res := d.Send(context.Background(), sampleReport(), pdfBytes, rcpt)

	if !res.Success || res.Sent != 5 || res.Total != 5 || len(res.Errors) != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}

	if len(c.messages) != 5 {
		t.Fatalf("expected 5 POSTs, got %d", len(c.messages))
	}

	for i := 1; i < len(c.times); i++ {
		if gap := c.times[i].Sub(c.times[i-1]); gap < configs.DefaultMailPacing {
			t.Fatalf("send %d followed previous after %s", i, gap)
		}
	}

	first := c.messages[0]
	if first.Subject != "Relatório de visita do dia 09/03/24 – Obra Edifício Aurora" {
		t.Fatalf("subject: %q", first.Subject)
	}

	if len(first.Attachments) != 1 || first.Attachments[0].Filename != "P001-R003_Edificio_Aurora.pdf" {
		t.Fatalf("attachment: %+v", first.Attachments)
	}

	raw, err := base64.StdEncoding.DecodeString(first.Attachments[0].Content)
	if err != nil || string(raw) != string(pdfBytes) {
		t.Fatalf("attachment content mismatch: %q %v", raw, err)
	}

	if c.auth[0] != "Bearer re_test" {
		t.Fatalf("authorization header: %q", c.auth[0])
	}

	if !strings.Contains(c.messages[1].HTML, "Bruno Lima") || !strings.Contains(first.HTML, "a@x.com") {
		t.Fatalf("body missing greeting or contact:\n%s", c.messages[1].HTML)
	}

	for _, o := range res.Outcomes {
		if o.MessageID == "" {
			t.Fatalf("missing message id for %s", o.Email)
		}
	}
}

func TestSendFailureDoesNotAbort(t *testing.T) {
	c := &capture{}
	srv := newServer(t, c, "b@x.com")

	cfg := config(srv.URL)
	cfg.Pacing = 10 * time.Millisecond

	res := mail.New(cfg).Send(context.Background(), sampleReport(), []byte("%PDF"), &recipients.Result{
		Emails: []string{"a@x.com", "b@x.com", "c@x.com"},
	})

	if !res.Success || res.Sent != 2 || res.Total != 3 {
		t.Fatalf("unexpected result: %+v", res)
	}

	if len(res.Errors) != 1 || !strings.HasPrefix(res.Errors[0], "b@x.com: status 422") {
		t.Fatalf("errors: %v", res.Errors)
	}

	if res.Outcomes[1].StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status code not recorded: %+v", res.Outcomes[1])
	}

	if len(c.messages) != 3 {
		t.Fatalf("expected 3 POSTs, got %d", len(c.messages))
	}
}

type stubSender struct{ calls int }

func (s *stubSender) Send(context.Context, *mail.Message) (string, error) {
	s.calls++

	return "", nil
}

func TestSendEmptyRecipients(t *testing.T) {
	s := &stubSender{}
	res := mail.New(configs.MailConfig{}, mail.WithSender(s)).Send(context.Background(), sampleReport(), nil, &recipients.Result{})

	if res.Total != 0 || res.Sent != 0 || s.calls != 0 {
		t.Fatalf("unexpected result %+v after %d calls", res, s.calls)
	}
}

func TestSendUnreachableAPI(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	cfg := config(url)
	cfg.Pacing = 0

	res := mail.New(cfg).Send(context.Background(), sampleReport(), []byte("%PDF"), &recipients.Result{Emails: []string{"a@x.com"}})
	if res.Success || res.Sent != 0 || len(res.Errors) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
}
