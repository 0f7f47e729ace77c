// Package workflow 报告状态机：状态迁移表、权限门禁与全局审批人判定.
//
// 本包不访问存储，只对 *model.Relatorio 做内存中的迁移，持久化由服务层完成.
package workflow

import (
	"strconv"
	"strings"
	"time"

	"github.com/yeisme/vistoria/pkg/configs"
	"github.com/yeisme/vistoria/pkg/errs"
	"github.com/yeisme/vistoria/pkg/internal/model"
)

// Event 状态机事件.
type Event string

const (
	EventSubmit  Event = "submit"
	EventEdit    Event = "edit"
	EventApprove Event = "approve"
	EventReject  Event = "reject"
	EventDelete  Event = "delete"
)

// Actor 当前会话身份，由外层认证注入.
type Actor struct {
	UserID uint
	Email  string
	Nome   string
	Role   string
	// GlobalApprover 用户记录上的全局审批标记
	GlobalApprover bool
}

// Anonymous reports whether no identity was supplied.
func (a Actor) Anonymous() bool {
	return a.UserID == 0
}

// gate 迁移门禁.
type gate int

const (
	gateAuthorOrPrivileged gate = iota
	gatePrivileged
	gateGlobalApprover
	gateOwnerOrPrivileged
)

type transition struct {
	to   model.Status
	gate gate
}

type key struct {
	from  model.Status
	event Event
}

// anyState 用于 delete 的通配.
const anyState model.Status = "*"

var table = map[key]transition{
	{model.StatusDraft, EventSubmit}:             {model.StatusAwaitingApproval, gateAuthorOrPrivileged},
	{model.StatusDraft, EventEdit}:               {model.StatusDraft, gateAuthorOrPrivileged},
	{model.StatusAwaitingApproval, EventEdit}:    {model.StatusAwaitingApproval, gateAuthorOrPrivileged},
	{model.StatusAwaitingApproval, EventApprove}: {model.StatusApproved, gateGlobalApprover},
	{model.StatusAwaitingApproval, EventReject}:  {model.StatusRejected, gateGlobalApprover},
	{model.StatusApproved, EventEdit}:            {model.StatusApproved, gatePrivileged},
	{model.StatusRejected, EventEdit}:            {model.StatusDraft, gateAuthorOrPrivileged},
	{anyState, EventDelete}:                      {"", gateOwnerOrPrivileged},
}

// Policy 权限判定，来源于 workflow 配置.
type Policy struct {
	globalApprovers map[string]struct{}
	privilegedRoles map[string]struct{}
}

// NewPolicy 由配置构造 Policy.
func NewPolicy(cfg configs.WorkflowConfig) *Policy {
	p := &Policy{
		globalApprovers: make(map[string]struct{}, len(cfg.GlobalApprovers)),
		privilegedRoles: make(map[string]struct{}, len(cfg.PrivilegedRoles)),
	}

	for _, v := range cfg.GlobalApprovers {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			p.globalApprovers[v] = struct{}{}
		}
	}

	for _, r := range cfg.PrivilegedRoles {
		if r = strings.ToLower(strings.TrimSpace(r)); r != "" {
			p.privilegedRoles[r] = struct{}{}
		}
	}

	return p
}

// IsPrivileged 角色属于特权角色.
func (p *Policy) IsPrivileged(a Actor) bool {
	_, ok := p.privilegedRoles[strings.ToLower(a.Role)]

	return ok && !a.Anonymous()
}

// IsGlobalApprover 用户标记为全局审批人，或其 id/email 在配置列表中.
func (p *Policy) IsGlobalApprover(a Actor) bool {
	if a.Anonymous() {
		return false
	}

	if a.GlobalApprover {
		return true
	}

	if _, ok := p.globalApprovers[strconv.FormatUint(uint64(a.UserID), 10)]; ok {
		return true
	}

	if a.Email != "" {
		if _, ok := p.globalApprovers[strings.ToLower(a.Email)]; ok {
			return true
		}
	}

	return false
}

// ConfiguredApprover reports whether a user (by id or email) is in the configured list.
func (p *Policy) ConfiguredApprover(id uint, email string) bool {
	return p.IsGlobalApprover(Actor{UserID: id, Email: email})
}

// Outcome 一次迁移的结果.
type Outcome struct {
	Event Event
	From  model.Status
	To    model.Status
	// NotifyApprovers 待审批期间被编辑，需要通知审批人
	NotifyApprovers bool
	// RunApproval 进入 Approved，需要执行审批副作用
	RunApproval bool
}

// Changed reports whether the status changed.
func (o Outcome) Changed() bool {
	return o.From != o.To
}

// Check 只做门禁与迁移表校验，不修改报告.
func (p *Policy) Check(r *model.Relatorio, ev Event, a Actor) (model.Status, error) {
	from := r.Status
	if from == "" {
		from = model.StatusDraft
	}

	t, ok := table[key{from, ev}]
	if !ok {
		t, ok = table[key{anyState, ev}]
	}

	if !ok {
		return from, errs.New(errs.KindConflict, "transição %q inválida a partir de %q", ev, from)
	}

	if a.Anonymous() {
		return from, errs.New(errs.KindForbidden, "sessão sem identidade")
	}

	if !p.allowed(t.gate, r, a) {
		return from, errs.New(errs.KindForbidden, "sem permissão para %q neste relatório", ev)
	}

	return t.to, nil
}

func (p *Policy) allowed(g gate, r *model.Relatorio, a Actor) bool {
	privileged := p.IsPrivileged(a)
	author := r.AutorID != 0 && r.AutorID == a.UserID

	switch g {
	case gateAuthorOrPrivileged:
		return author || privileged
	case gatePrivileged:
		return privileged
	case gateGlobalApprover:
		return p.IsGlobalApprover(a)
	case gateOwnerOrPrivileged:
		return privileged || (author && r.Status != model.StatusApproved)
	default:
		return false
	}
}

// Apply 校验并执行迁移。approve 写入审批人与审批时间（UTC 持久化），reject 写入意见.
func (p *Policy) Apply(r *model.Relatorio, ev Event, a Actor, now time.Time, comment string) (Outcome, error) {
	from := r.Status
	if from == "" {
		from = model.StatusDraft
	}

	to, err := p.Check(r, ev, a)
	if err != nil {
		return Outcome{Event: ev, From: from, To: from}, err
	}

	out := Outcome{Event: ev, From: from, To: to}

	switch ev {
	case EventApprove:
		approver := a.UserID
		at := now.UTC()
		r.AprovadorID = &approver
		r.DataAprovacao = &at
		out.RunApproval = true
	case EventReject:
		approver := a.UserID
		r.AprovadorID = &approver
		r.DataAprovacao = nil
		r.ComentarioAprovacao = strings.TrimSpace(comment)
	case EventEdit:
		out.NotifyApprovers = from == model.StatusAwaitingApproval
	case EventDelete:
		return out, nil
	}

	if to != model.StatusApproved {
		r.DataAprovacao = nil
	}

	r.Status = to

	return out, nil
}
