// Package recipients 计算审批邮件的收件人集合：作者、审批人（含固定抄送）、项目联系人与同行人员.
package recipients

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/yeisme/vistoria/pkg/internal/model"
	"github.com/yeisme/vistoria/pkg/log"
)

// 收件人来源.
const (
	KindAutor         = "autor"
	KindAprovador     = "aprovador"
	KindObra          = "obra"
	KindAcompanhantes = "acompanhantes"
)

// Directory 解析所需的目录查询.
type Directory interface {
	GetUser(ctx context.Context, id uint) (*model.Usuario, error)
	ListUsers(ctx context.Context) ([]model.Usuario, error)
	GetContact(ctx context.Context, id uint) (*model.ContatoObra, error)
	ListContacts(ctx context.Context) ([]model.ContatoObra, error)
	ListProjectContacts(ctx context.Context, projectID uint) ([]model.ContatoObra, error)
}

// Result 解析结果；Emails 已排序去重.
type Result struct {
	Emails []string            `json:"emails"`
	ByKind map[string][]string `json:"by_kind"`
	Total  int                 `json:"total"`
	// Names 邮箱到称呼，用于邮件问候
	Names map[string]string `json:"-"`
}

// Resolver 收件人解析器.
type Resolver struct {
	dir       Directory
	fixedCC   string
	matcher   Matcher
	threshold float64
	logger    zerolog.Logger
}

// Option 配置 Resolver.
type Option func(*Resolver)

// WithMatcher 替换姓名匹配策略与阈值.
func WithMatcher(m Matcher, threshold float64) Option {
	return func(r *Resolver) {
		r.matcher = m
		r.threshold = threshold
	}
}

// New 创建解析器；fixedCC 为空时不附加固定抄送.
func New(dir Directory, fixedCC string, opts ...Option) *Resolver {
	r := &Resolver{
		dir:       dir,
		fixedCC:   fixedCC,
		matcher:   NameMatcher{},
		threshold: DefaultThreshold,
		logger:    log.Component("recipients"),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Normalize 去空白并转小写；不含 "@" 或含空白的地址返回 false.
func Normalize(addr string) (string, bool) {
	addr = strings.ToLower(strings.TrimSpace(addr))
	if addr == "" || strings.ContainsAny(addr, " \t\r\n,;<>") {
		return "", false
	}

	at := strings.Index(addr, "@")
	if at <= 0 || at == len(addr)-1 || strings.Count(addr, "@") != 1 {
		return "", false
	}

	return addr, true
}

// collector 累积并去重.
type collector struct {
	set    map[string]struct{}
	byKind map[string][]string
	names  map[string]string
	logger *zerolog.Logger
	relID  uint
}

func (c *collector) add(kind, addr, name string) {
	if strings.TrimSpace(addr) == "" {
		return
	}

	email, ok := Normalize(addr)
	if !ok {
		c.logger.Warn().Uint("relatorio_id", c.relID).Str("kind", kind).Str("email", addr).Msg("discarding malformed address")

		return
	}

	for _, e := range c.byKind[kind] {
		if e == email {
			return
		}
	}

	c.byKind[kind] = append(c.byKind[kind], email)
	c.set[email] = struct{}{}

	if _, ok := c.names[email]; !ok && strings.TrimSpace(name) != "" {
		c.names[email] = strings.TrimSpace(name)
	}
}

// Resolve 计算报告的收件人；目录查询失败只记录日志，不作为错误传播.
func (r *Resolver) Resolve(ctx context.Context, rel *model.Relatorio) (*Result, error) {
	c := &collector{
		set:    map[string]struct{}{},
		byKind: map[string][]string{KindAutor: {}, KindAprovador: {}, KindObra: {}, KindAcompanhantes: {}},
		names:  map[string]string{},
		logger: &r.logger,
		relID:  rel.ID,
	}

	if author := r.user(ctx, rel.Autor, rel.AutorID); author != nil {
		c.add(KindAutor, author.Email, author.Nome)
	}

	var approverID uint
	if rel.AprovadorID != nil {
		approverID = *rel.AprovadorID
	}

	if approver := r.user(ctx, rel.Aprovador, approverID); approver != nil {
		c.add(KindAprovador, approver.Email, approver.Nome)
	}

	c.add(KindAprovador, r.fixedCC, "")

	r.projectContacts(ctx, rel, c)
	r.companions(ctx, rel, c)

	emails := make([]string, 0, len(c.set))
	for e := range c.set {
		emails = append(emails, e)
	}

	sort.Strings(emails)

	for k := range c.byKind {
		sort.Strings(c.byKind[k])
	}

	return &Result{Emails: emails, ByKind: c.byKind, Total: len(emails), Names: c.names}, nil
}

func (r *Resolver) user(ctx context.Context, loaded *model.Usuario, id uint) *model.Usuario {
	if loaded != nil {
		return loaded
	}

	if id == 0 {
		return nil
	}

	u, err := r.dir.GetUser(ctx, id)
	if err != nil {
		r.logger.Warn().Err(err).Uint("usuario_id", id).Msg("user lookup failed")

		return nil
	}

	return u
}

// projectContacts 报告上的工地邮箱优先，否则使用项目联系人列表.
func (r *Resolver) projectContacts(ctx context.Context, rel *model.Relatorio, c *collector) {
	if strings.TrimSpace(rel.EmailObra) != "" {
		c.add(KindObra, rel.EmailObra, "")

		return
	}

	contacts, err := r.dir.ListProjectContacts(ctx, rel.ProjetoID)
	if err != nil {
		r.logger.Warn().Err(err).Uint("obra_id", rel.ProjetoID).Msg("project contacts lookup failed")

		return
	}

	for _, ct := range contacts {
		c.add(KindObra, ct.Email, ct.Nome)
	}
}

// candidate 姓名匹配候选.
type candidate struct {
	name  string
	email string
}

func (r *Resolver) companions(ctx context.Context, rel *model.Relatorio, c *collector) {
	list := rel.Companions()
	if len(list) == 0 {
		return
	}

	var pool []candidate

	poolLoaded := false

	for _, a := range list {
		if strings.TrimSpace(a.Email) != "" {
			c.add(KindAcompanhantes, a.Email, a.Nome)

			continue
		}

		if email := r.byReference(ctx, a.ID); email != "" {
			c.add(KindAcompanhantes, email, a.Nome)

			continue
		}

		if strings.TrimSpace(a.Nome) == "" {
			continue
		}

		if !poolLoaded {
			pool = r.candidates(ctx)
			poolLoaded = true
		}

		if email := r.bestMatch(a.Nome, pool); email != "" {
			c.add(KindAcompanhantes, email, a.Nome)
		} else {
			r.logger.Debug().Uint("relatorio_id", rel.ID).Str("nome", a.Nome).Msg("companion without email")
		}
	}
}

// byReference 解析 "ec_<n>"（联系人）或纯数字（用户）引用.
func (r *Resolver) byReference(ctx context.Context, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}

	if rest, ok := strings.CutPrefix(strings.ToLower(ref), "ec_"); ok {
		id, err := strconv.ParseUint(rest, 10, 64)
		if err != nil {
			return ""
		}

		ct, err := r.dir.GetContact(ctx, uint(id))
		if err != nil {
			return ""
		}

		return ct.Email
	}

	id, err := strconv.ParseUint(ref, 10, 64)
	if err != nil {
		return ""
	}

	u, err := r.dir.GetUser(ctx, uint(id))
	if err != nil {
		return ""
	}

	return u.Email
}

// candidates 先用户后联系人，各自按 id 排序；没有邮箱的条目不参与匹配.
func (r *Resolver) candidates(ctx context.Context) []candidate {
	var out []candidate

	users, err := r.dir.ListUsers(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Msg("list users failed")
	}

	for _, u := range users {
		if u.Email != "" {
			out = append(out, candidate{name: u.Nome, email: u.Email})
		}
	}

	contacts, err := r.dir.ListContacts(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Msg("list contacts failed")
	}

	for _, ct := range contacts {
		if ct.Email != "" {
			out = append(out, candidate{name: ct.Nome, email: ct.Email})
		}
	}

	return out
}

// bestMatch 相似度最高且不低于阈值的候选；同分取先出现者.
func (r *Resolver) bestMatch(name string, pool []candidate) string {
	best, bestScore := "", r.threshold

	for _, cand := range pool {
		score := r.matcher.Similarity(name, cand.name)
		if score > bestScore || (best == "" && score >= bestScore) {
			best, bestScore = cand.email, score
		}
	}

	return best
}
