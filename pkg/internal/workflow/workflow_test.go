package workflow_test

import (
	"errors"
	"testing"
	"time"

	"github.com/yeisme/vistoria/pkg/configs"
	"github.com/yeisme/vistoria/pkg/errs"
	"github.com/yeisme/vistoria/pkg/internal/model"
	"github.com/yeisme/vistoria/pkg/internal/workflow"
)

var (
	author   = workflow.Actor{UserID: 1, Email: "autor@x.com"}
	stranger = workflow.Actor{UserID: 2, Email: "outro@x.com"}
	admin    = workflow.Actor{UserID: 3, Role: "admin"}
	approver = workflow.Actor{UserID: 4, Email: "Chefe@X.com"}
	flagged  = workflow.Actor{UserID: 5, GlobalApprover: true}
)

func newPolicy() *workflow.Policy {
	return workflow.NewPolicy(configs.WorkflowConfig{
		GlobalApprovers: []string{"chefe@x.com", "42"},
		PrivilegedRoles: []string{"admin", "master"},
	})
}

func TestGlobalApproverPredicate(t *testing.T) {
	p := newPolicy()

	cases := []struct {
		name  string
		actor workflow.Actor
		want  bool
	}{
		{"flag on user", flagged, true},
		{"email in list, case insensitive", approver, true},
		{"id in list", workflow.Actor{UserID: 42}, true},
		{"author", author, false},
		{"admin is not approver", admin, false},
		{"anonymous", workflow.Actor{Email: "chefe@x.com"}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := p.IsGlobalApprover(tc.actor); got != tc.want {
				t.Fatalf("IsGlobalApprover = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestTransitionTable(t *testing.T) {
	p := newPolicy()

	cases := []struct {
		name  string
		from  model.Status
		event workflow.Event
		actor workflow.Actor
		to    model.Status
		kind  errs.Kind // KindInternal means success
	}{
		{"author submits draft", model.StatusDraft, workflow.EventSubmit, author, model.StatusAwaitingApproval, errs.KindInternal},
		{"admin submits draft", model.StatusDraft, workflow.EventSubmit, admin, model.StatusAwaitingApproval, errs.KindInternal},
		{"stranger cannot submit", model.StatusDraft, workflow.EventSubmit, stranger, model.StatusDraft, errs.KindForbidden},
		{"approve pending", model.StatusAwaitingApproval, workflow.EventApprove, approver, model.StatusApproved, errs.KindInternal},
		{"author cannot approve", model.StatusAwaitingApproval, workflow.EventApprove, author, model.StatusAwaitingApproval, errs.KindForbidden},
		{"reject pending", model.StatusAwaitingApproval, workflow.EventReject, flagged, model.StatusRejected, errs.KindInternal},
		{"approve draft is invalid", model.StatusDraft, workflow.EventApprove, approver, model.StatusDraft, errs.KindConflict},
		{"approve twice is invalid", model.StatusApproved, workflow.EventApprove, approver, model.StatusApproved, errs.KindConflict},
		{"edit pending stays pending", model.StatusAwaitingApproval, workflow.EventEdit, author, model.StatusAwaitingApproval, errs.KindInternal},
		{"author cannot edit approved", model.StatusApproved, workflow.EventEdit, author, model.StatusApproved, errs.KindForbidden},
		{"admin edits approved", model.StatusApproved, workflow.EventEdit, admin, model.StatusApproved, errs.KindInternal},
		{"edit rejected goes back to draft", model.StatusRejected, workflow.EventEdit, author, model.StatusDraft, errs.KindInternal},
		{"submit rejected is invalid", model.StatusRejected, workflow.EventSubmit, author, model.StatusRejected, errs.KindConflict},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := &model.Relatorio{ID: 10, AutorID: author.UserID, Status: tc.from}

			out, err := p.Apply(r, tc.event, tc.actor, time.Now(), "")
			if tc.kind != errs.KindInternal {
				if errs.KindOf(err) != tc.kind {
					t.Fatalf("expected %s, got %v", tc.kind, err)
				}

				if r.Status != tc.from {
					t.Fatalf("status changed on failure: %s", r.Status)
				}

				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if r.Status != tc.to || out.To != tc.to {
				t.Fatalf("expected %s, got %s (outcome %s)", tc.to, r.Status, out.To)
			}
		})
	}
}

func TestApproveSetsApproverAndDate(t *testing.T) {
	p := newPolicy()
	r := &model.Relatorio{AutorID: author.UserID, Status: model.StatusAwaitingApproval}
	now := time.Date(2024, 5, 2, 15, 0, 0, 0, time.FixedZone("BRT", -3*3600))

	out, err := p.Apply(r, workflow.EventApprove, approver, now, "")
	if err != nil {
		t.Fatal(err)
	}

	if !out.RunApproval {
		t.Error("expected RunApproval")
	}

	if r.AprovadorID == nil || *r.AprovadorID != approver.UserID {
		t.Fatalf("unexpected aprovador_id %v", r.AprovadorID)
	}

	if r.DataAprovacao == nil || !r.DataAprovacao.Equal(now) || r.DataAprovacao.Location() != time.UTC {
		t.Fatalf("unexpected data_aprovacao %v", r.DataAprovacao)
	}
}

func TestRejectKeepsComment(t *testing.T) {
	p := newPolicy()
	r := &model.Relatorio{AutorID: author.UserID, Status: model.StatusAwaitingApproval}

	if _, err := p.Apply(r, workflow.EventReject, approver, time.Now(), "  refazer fotos "); err != nil {
		t.Fatal(err)
	}

	if r.ComentarioAprovacao != "refazer fotos" {
		t.Fatalf("unexpected comment %q", r.ComentarioAprovacao)
	}

	if r.DataAprovacao != nil {
		t.Fatal("rejected report must not carry data_aprovacao")
	}
}

func TestEditPendingNotifiesApprovers(t *testing.T) {
	p := newPolicy()
	r := &model.Relatorio{AutorID: author.UserID, Status: model.StatusAwaitingApproval}

	out, err := p.Apply(r, workflow.EventEdit, author, time.Now(), "")
	if err != nil {
		t.Fatal(err)
	}

	if !out.NotifyApprovers || out.Changed() {
		t.Fatalf("unexpected outcome %+v", out)
	}
}

func TestDeleteGate(t *testing.T) {
	p := newPolicy()

	draft := &model.Relatorio{AutorID: author.UserID, Status: model.StatusDraft}
	if _, err := p.Check(draft, workflow.EventDelete, author); err != nil {
		t.Fatalf("owner should delete draft: %v", err)
	}

	approved := &model.Relatorio{AutorID: author.UserID, Status: model.StatusApproved}
	if _, err := p.Check(approved, workflow.EventDelete, author); !errors.Is(err, errs.Forbidden) {
		t.Fatalf("owner must not delete approved report, got %v", err)
	}

	if _, err := p.Check(approved, workflow.EventDelete, admin); err != nil {
		t.Fatalf("privileged should delete approved: %v", err)
	}

	if _, err := p.Check(draft, workflow.EventDelete, stranger); !errors.Is(err, errs.Forbidden) {
		t.Fatalf("stranger must not delete, got %v", err)
	}
}
