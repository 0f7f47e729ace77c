package autosave

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/yeisme/vistoria/pkg/errs"
	"github.com/yeisme/vistoria/pkg/internal/imagestore"
	"github.com/yeisme/vistoria/pkg/internal/model"
	"github.com/yeisme/vistoria/pkg/tz"
)

// Field 可选字段：Set 表示请求中出现了该键，Null 表示显式 null.
type Field[T any] struct {
	Set  bool
	Null bool
	V    T
}

// Set 构造已设置的字段.
func Set[T any](v T) Field[T] {
	return Field[T]{Set: true, V: v}
}

// Null 构造显式 null 的字段.
func Null[T any]() Field[T] {
	return Field[T]{Set: true, Null: true}
}

// Input 自动保存请求。除 ID/ProjetoID 外，只有 Set 的字段会被合并.
type Input struct {
	ID        uint
	ProjetoID uint

	Titulo            Field[string]
	Descricao         Field[string]
	Conteudo          Field[string]
	Categoria         Field[string]
	Local             Field[string]
	ObservacoesFinais Field[string]
	EmailObra         Field[string]
	// Status 仅作提示，权威迁移由状态机决定
	Status        Field[string]
	Lembrete      Field[time.Time]
	DataRelatorio Field[time.Time]
	Latitude      Field[float64]
	Longitude     Field[float64]
	// Checklist 规范化后的 JSON 文本
	Checklist     Field[string]
	Acompanhantes Field[[]model.Acompanhante]

	Fotos []PhotoOp
}

// OpKind 照片操作类型.
type OpKind int

const (
	OpInvalid OpKind = iota
	OpDelete
	OpInsertTemp
	OpInsertFile
	OpUpdate
)

func (k OpKind) String() string {
	switch k {
	case OpDelete:
		return "delete"
	case OpInsertTemp:
		return "insert_temp"
	case OpInsertFile:
		return "insert_file"
	case OpUpdate:
		return "update"
	default:
		return "invalid"
	}
}

// PhotoOp 照片增量操作.
type PhotoOp struct {
	ID     uint
	TempID string
	// Ref url 或文件名，用于从已有文件补齐
	Ref    string
	Delete bool
	Meta   imagestore.PhotoMeta
}

// Kind 按字段判定操作类型：deletar 优先，其次 temp_id、url/filename，最后是带 id 的元数据更新.
func (op PhotoOp) Kind() OpKind {
	switch {
	case op.Delete && op.ID != 0:
		return OpDelete
	case op.TempID != "":
		return OpInsertTemp
	case op.Ref != "" && op.ID == 0:
		return OpInsertFile
	case op.ID != 0:
		return OpUpdate
	default:
		return OpInvalid
	}
}

// ParseInput 解析自动保存请求体，兼容 checklist/acompanhantes 的字符串编码.
func ParseInput(body []byte) (*Input, error) {
	var doc map[string]json.RawMessage
	if err := sonic.Unmarshal(body, &doc); err != nil {
		return nil, errs.New(errs.KindValidation, "JSON inválido").WithDetails(err.Error())
	}

	in := &Input{}
	bad := map[string]string{}

	var err error

	if raw, ok := doc["id"]; ok {
		if in.ID, err = decodeUint(raw); err != nil {
			bad["id"] = err.Error()
		}
	}

	if raw, ok := doc["projeto_id"]; ok {
		if in.ProjetoID, err = decodeUint(raw); err != nil {
			bad["projeto_id"] = err.Error()
		}
	}

	for k, raw := range doc {
		if err := in.decodeScalar(k, raw); err != nil {
			bad[k] = err.Error()
		}
	}

	raw, ok := doc["fotos"]
	if !ok {
		raw, ok = doc["imagens"]
	}

	if ok && !isNull(raw) {
		if in.Fotos, err = decodePhotoOps(raw); err != nil {
			bad["fotos"] = err.Error()
		}
	}

	if len(bad) > 0 {
		return nil, errs.New(errs.KindValidation, "campos inválidos").WithDetails(bad)
	}

	return in, nil
}

// decodeScalar 解析单个标量键，未知键忽略.
func (in *Input) decodeScalar(key string, raw json.RawMessage) error {
	var err error

	switch key {
	case "titulo":
		in.Titulo, err = decodeString(raw)
	case "descricao":
		in.Descricao, err = decodeString(raw)
	case "conteudo":
		in.Conteudo, err = decodeString(raw)
	case "categoria":
		in.Categoria, err = decodeString(raw)
	case "local":
		in.Local, err = decodeString(raw)
	case "observacoes_finais":
		in.ObservacoesFinais, err = decodeString(raw)
	case "email_obra":
		in.EmailObra, err = decodeString(raw)
	case "status":
		in.Status, err = decodeString(raw)
	case "lembrete_proxima_visita":
		in.Lembrete, err = decodeTime(raw)
	case "data_relatorio":
		in.DataRelatorio, err = decodeTime(raw)
	case "latitude":
		in.Latitude, err = decodeFloat(raw)
	case "longitude":
		in.Longitude, err = decodeFloat(raw)
	case "checklist_data":
		in.Checklist, err = decodeChecklist(raw)
	case "acompanhantes":
		in.Acompanhantes, err = decodeCompanions(raw)
	}

	return err
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func isString(raw json.RawMessage) bool {
	b := bytes.TrimSpace(raw)

	return len(b) > 0 && b[0] == '"'
}

func decodeString(raw json.RawMessage) (Field[string], error) {
	if isNull(raw) {
		return Null[string](), nil
	}

	if isString(raw) {
		var s string
		if err := sonic.Unmarshal(raw, &s); err != nil {
			return Field[string]{}, err
		}

		return Set(s), nil
	}

	b := bytes.TrimSpace(raw)
	if b[0] == '{' || b[0] == '[' {
		return Field[string]{}, errs.New(errs.KindValidation, "esperado texto")
	}

	return Set(string(b)), nil
}

// scalarText 数字或字符串的文本形式.
func scalarText(raw json.RawMessage) (string, error) {
	if isString(raw) {
		var s string
		if err := sonic.Unmarshal(raw, &s); err != nil {
			return "", err
		}

		return strings.TrimSpace(s), nil
	}

	return strings.TrimSpace(string(raw)), nil
}

func decodeUint(raw json.RawMessage) (uint, error) {
	if isNull(raw) {
		return 0, nil
	}

	s, err := scalarText(raw)
	if err != nil || s == "" {
		return 0, err
	}

	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, errs.New(errs.KindValidation, "esperado inteiro positivo: %q", s)
	}

	return uint(n), nil
}

func decodeFloat(raw json.RawMessage) (Field[float64], error) {
	if isNull(raw) {
		return Null[float64](), nil
	}

	s, err := scalarText(raw)
	if err != nil {
		return Field[float64]{}, err
	}

	if s == "" {
		return Null[float64](), nil
	}

	f, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil {
		return Field[float64]{}, errs.New(errs.KindValidation, "esperado número: %q", s)
	}

	return Set(f), nil
}

var timeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// decodeTime 解析时间并转为 UTC；不带时区的值按系统时区解释.
func decodeTime(raw json.RawMessage) (Field[time.Time], error) {
	if isNull(raw) {
		return Null[time.Time](), nil
	}

	s, err := scalarText(raw)
	if err != nil {
		return Field[time.Time]{}, err
	}

	if s == "" {
		return Null[time.Time](), nil
	}

	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return Set(t.UTC()), nil
	}

	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, tz.Location()); err == nil {
			return Set(t.UTC()), nil
		}
	}

	return Field[time.Time]{}, errs.New(errs.KindValidation, "data inválida: %q", s)
}

// decodeChecklist 接受 JSON 文本或结构化值，统一为 JSON 文本.
func decodeChecklist(raw json.RawMessage) (Field[string], error) {
	if isNull(raw) {
		return Null[string](), nil
	}

	if !isString(raw) {
		return Set(string(bytes.TrimSpace(raw))), nil
	}

	var s string
	if err := sonic.Unmarshal(raw, &s); err != nil {
		return Field[string]{}, err
	}

	if s = strings.TrimSpace(s); s == "" {
		return Null[string](), nil
	}

	if !sonic.Valid([]byte(s)) {
		return Field[string]{}, errs.New(errs.KindValidation, "checklist_data não é JSON válido")
	}

	return Set(s), nil
}

type companionIn struct {
	Nome   string          `json:"nome"`
	Name   string          `json:"name"`
	Email  string          `json:"email"`
	ID     json.RawMessage `json:"id"`
	Funcao string          `json:"funcao"`
}

// decodeCompanions 接受列表或其 JSON 文本；元素可以是对象或仅姓名字符串.
func decodeCompanions(raw json.RawMessage) (Field[[]model.Acompanhante], error) {
	if isNull(raw) {
		return Set([]model.Acompanhante{}), nil
	}

	if isString(raw) {
		var s string
		if err := sonic.Unmarshal(raw, &s); err != nil {
			return Field[[]model.Acompanhante]{}, err
		}

		if s = strings.TrimSpace(s); s == "" {
			return Set([]model.Acompanhante{}), nil
		}

		raw = json.RawMessage(s)
	}

	var items []json.RawMessage
	if err := sonic.Unmarshal(raw, &items); err != nil {
		return Field[[]model.Acompanhante]{}, errs.New(errs.KindValidation, "acompanhantes deve ser uma lista")
	}

	out := make([]model.Acompanhante, 0, len(items))

	for _, item := range items {
		if isNull(item) {
			continue
		}

		if isString(item) {
			var name string
			if err := sonic.Unmarshal(item, &name); err == nil && strings.TrimSpace(name) != "" {
				out = append(out, model.Acompanhante{Nome: strings.TrimSpace(name)})
			}

			continue
		}

		var c companionIn
		if err := sonic.Unmarshal(item, &c); err != nil {
			return Field[[]model.Acompanhante]{}, errs.New(errs.KindValidation, "acompanhante inválido")
		}

		a := model.Acompanhante{
			Nome:   strings.TrimSpace(c.Nome),
			Email:  strings.TrimSpace(c.Email),
			Funcao: strings.TrimSpace(c.Funcao),
		}

		if a.Nome == "" {
			a.Nome = strings.TrimSpace(c.Name)
		}

		if len(c.ID) > 0 && !isNull(c.ID) {
			a.ID, _ = scalarText(c.ID)
		}

		if a.Nome == "" && a.Email == "" && a.ID == "" {
			continue
		}

		out = append(out, a)
	}

	return Set(out), nil
}

type photoIn struct {
	ID        json.RawMessage `json:"id"`
	TempID    string          `json:"temp_id"`
	URL       string          `json:"url"`
	Filename  string          `json:"filename"`
	Deletar   json.RawMessage `json:"deletar"`
	Caption   *string         `json:"caption"`
	Legenda   *string         `json:"legenda"`
	Titulo    *string         `json:"titulo"`
	Category  *string         `json:"category"`
	Categoria *string         `json:"categoria"`
	Local     *string         `json:"local"`
	Ordem     json.RawMessage `json:"ordem"`
}

func decodePhotoOps(raw json.RawMessage) ([]PhotoOp, error) {
	var items []photoIn
	if err := sonic.Unmarshal(raw, &items); err != nil {
		return nil, errs.New(errs.KindValidation, "fotos deve ser uma lista de objetos")
	}

	ops := make([]PhotoOp, 0, len(items))

	for i, p := range items {
		id, err := decodeUint(p.ID)
		if err != nil {
			return nil, errs.New(errs.KindValidation, "fotos[%d].id inválido", i)
		}

		op := PhotoOp{
			ID:     id,
			TempID: strings.TrimSpace(p.TempID),
			Ref:    strings.TrimSpace(p.URL),
			Delete: truthy(p.Deletar),
		}

		if op.Ref == "" {
			op.Ref = strings.TrimSpace(p.Filename)
		}

		op.Meta.Legenda = firstNonNil(p.Caption, p.Legenda)
		op.Meta.Titulo = p.Titulo
		op.Meta.Categoria = firstNonNil(p.Category, p.Categoria)
		op.Meta.Local = p.Local

		if len(p.Ordem) > 0 && !isNull(p.Ordem) {
			s, _ := scalarText(p.Ordem)
			if s != "" {
				n, err := strconv.Atoi(s)
				if err != nil || n < 0 {
					return nil, errs.New(errs.KindValidation, "fotos[%d].ordem inválida", i)
				}

				op.Meta.Ordem = &n
			}
		}

		ops = append(ops, op)
	}

	return ops, nil
}

func truthy(raw json.RawMessage) bool {
	if isNull(raw) {
		return false
	}

	s, _ := scalarText(raw)

	switch strings.ToLower(s) {
	case "true", "1", "yes", "sim", "on":
		return true
	}

	return false
}

func firstNonNil(vals ...*string) *string {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}

	return nil
}
