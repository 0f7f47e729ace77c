package rule_test

import (
	"strings"
	"testing"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/yeisme/vistoria/pkg/rule"
)

type dispatchSettings struct {
	From    string `json:"from"     rule:"required,email"`
	FixedCC string `json:"fixed_cc" rule:"omitempty,contains=@"`
	Status  string `json:"status"   rule:"report_status"`
}

func TestValidateStruct(t *testing.T) {
	if rule.Engine() == nil {
		t.Fatal("nil engine")
	}

	cases := []struct {
		name    string
		in      dispatchSettings
		wantErr string // JSON 字段名，空表示通过
	}{
		{"ok", dispatchSettings{From: "vistorias@obra.com.br", Status: "aprovado"}, ""},
		{"cc optional", dispatchSettings{From: "a@b.co", FixedCC: "", Status: "preenchimento"}, ""},
		{"missing from", dispatchSettings{Status: "aprovado"}, "from"},
		{"bad cc", dispatchSettings{From: "a@b.co", FixedCC: "diretoria", Status: "aprovado"}, "fixed_cc"},
		{"unknown status", dispatchSettings{From: "a@b.co", Status: "draft"}, "status"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := rule.ValidateStruct(tc.in)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}

				return
			}

			if _, ok := rule.Errors(err)[tc.wantErr]; !ok {
				t.Fatalf("expected error on %s, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestValidateVar(t *testing.T) {
	cases := []struct {
		value any
		tag   string
		ok    bool
	}{
		{"engenharia@construtora.com", "required,email", true},
		{"engenharia", "required,email", false},
		{int64(5 << 20), "lte=10485760", true},
		{int64(11 << 20), "lte=10485760", false},
		{"aguardando_aprovacao", "report_status", true},
		{"Aguardando aprovação", "report_status", false},
	}

	for _, tc := range cases {
		if err := rule.ValidateVar(tc.value, tc.tag); (err == nil) != tc.ok {
			t.Errorf("ValidateVar(%v, %q) = %v, want ok=%t", tc.value, tc.tag, err, tc.ok)
		}
	}
}

// 项目代码：字母开头，其余为字母或数字，例如 P001.
func TestRegisterValidation(t *testing.T) {
	err := rule.RegisterValidation("project_code", func(fl validator.FieldLevel) bool {
		code := fl.Field().String()
		if code == "" || !unicode.IsLetter(rune(code[0])) {
			return false
		}

		return strings.IndexFunc(code, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) }) < 0
	})
	if err != nil {
		t.Fatal(err)
	}

	for code, ok := range map[string]bool{"P001": true, "OBRA7": true, "001": false, "P-01": false, "": false} {
		if err := rule.ValidateVar(code, "project_code"); (err == nil) != ok {
			t.Errorf("project_code %q: %v", code, err)
		}
	}
}

func TestRegisterAlias(t *testing.T) {
	rule.RegisterAlias("numero_relatorio", "required,contains=-R")

	if err := rule.ValidateVar("P001-R003", "numero_relatorio"); err != nil {
		t.Errorf("unexpected error %v", err)
	}

	if err := rule.ValidateVar("REL-0042", "numero_relatorio"); err == nil {
		t.Error("legacy numero must not match the alias")
	}
}

// TestImageExt 测试照片扩展名规则.
func TestImageExt(t *testing.T) {
	for _, ext := range []string{"jpg", ".JPEG", "png", "gif", "webp"} {
		if err := rule.ValidateVar(ext, "image_ext"); err != nil {
			t.Errorf("expected %q to be accepted, got %v", ext, err)
		}
	}

	for _, ext := range []string{"bmp", "tiff", "", "pdf"} {
		if err := rule.ValidateVar(ext, "image_ext"); err == nil {
			t.Errorf("expected %q to be rejected", ext)
		}
	}
}

// TestErrors 测试错误字典使用 JSON 字段名.
func TestErrors(t *testing.T) {
	type payload struct {
		Status string `json:"status" rule:"required,report_status"`
		Titulo string `json:"titulo" rule:"max=5"`
	}

	err := rule.ValidateStruct(payload{Status: "rascunho", Titulo: "muito longo"})
	if err == nil {
		t.Fatal("expected validation error")
	}

	errs := rule.Errors(err)
	if _, ok := errs["status"]; !ok {
		t.Errorf("expected status key, got %v", errs)
	}

	if got := errs["titulo"]; got != "failed on max=5" {
		t.Errorf("unexpected titulo message %q", got)
	}

	if rule.Errors(nil) != nil {
		t.Error("expected nil for nil error")
	}
}
