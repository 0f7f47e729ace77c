// Package rule 提供结构体和字段验证功能的封装，基于 go-playground/validator 实现.
//
// 标签名为 "rule"，gin 的 binding 引擎与本包共享同一个实例，因此请求 DTO 也使用 rule 标签.
package rule

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	inst *validator.Validate
	once sync.Once
)

// ImageExtensions 可接受的照片扩展名（小写，无点）.
var ImageExtensions = []string{"jpg", "jpeg", "png", "gif", "webp"}

func initValidator() {
	if engine := binding.Validator.Engine(); engine != nil {
		if v, ok := engine.(*validator.Validate); ok {
			inst = v
		}
	}

	if inst == nil {
		inst = validator.New()
	}

	inst.SetTagName("rule")
	inst.RegisterTagNameFunc(jsonTagName)

	// 领域规则
	_ = inst.RegisterValidation("image_ext", validateImageExt)
	_ = inst.RegisterValidation("report_status", validateReportStatus)
}

// jsonTagName 让错误中的字段名与请求 JSON 保持一致.
func jsonTagName(fld reflect.StructField) string {
	for _, tag := range []string{"json", "form", "mapstructure"} {
		name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
		if name == "-" {
			return ""
		}

		if name != "" {
			return name
		}
	}

	return fld.Name
}

func validateImageExt(fl validator.FieldLevel) bool {
	return IsImageExt(fl.Field().String())
}

func validateReportStatus(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "preenchimento", "aguardando_aprovacao", "aprovado", "rejeitado":
		return true
	}

	return false
}

// IsImageExt 判断扩展名（可带前导点，大小写不敏感）是否为允许的照片格式.
func IsImageExt(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, e := range ImageExtensions {
		if e == ext {
			return true
		}
	}

	return false
}

func lazyInit() {
	once.Do(initValidator)
}

// Engine 返回全局 *validator.Validate，若未初始化则先初始化.
func Engine() *validator.Validate {
	lazyInit()

	return inst
}

// RegisterValidation 代理 RegisterValidation，确保已初始化.
func RegisterValidation(tag string, fn validator.Func, opts ...bool) error {
	lazyInit()

	return inst.RegisterValidation(tag, fn, opts...)
}

// ValidationErrors 是格式化后的验证错误字典，键为字段名（JSON 名），值为可读错误信息.
type ValidationErrors map[string]string

// Errors 把 validator 返回的错误整理为 ValidationErrors；非校验错误返回 nil.
func Errors(err error) ValidationErrors {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return nil
	}

	out := make(ValidationErrors, len(ves))
	for _, fe := range ves {
		msg := fe.Tag()
		if fe.Param() != "" {
			msg = fmt.Sprintf("%s=%s", fe.Tag(), fe.Param())
		}

		out[fe.Field()] = "failed on " + msg
	}

	return out
}

// ValidateStruct 对结构体执行完整校验，返回原始 error（可用 Errors 解析）.
func ValidateStruct(s any) error {
	lazyInit()

	return inst.Struct(s)
}

// ValidateVar 按规则对单个变量校验，例如: ValidateVar("abc", "required,email").
func ValidateVar(field any, tag string) error {
	lazyInit()

	return inst.Var(field, tag)
}

// RegisterAlias 包装 RegisterAlias，便于注册别名规则.
func RegisterAlias(alias, rules string) {
	lazyInit()

	inst.RegisterAlias(alias, rules)
}
