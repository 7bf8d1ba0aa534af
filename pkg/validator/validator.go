// Package validator wraps go-playground/validator for request structs. Field
// names come from json tags and failures are reported as ErrNewsValidation
// with translated messages.
package validator

import (
	"net/url"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"

	"github.com/kart-io/newslens/pkg/errors"
)

// Language constants.
const (
	LangEN = "en"
	LangZH = "zh"
)

// Custom tags.
const (
	// TagFeedURL 绝对的 http(s) 地址
	TagFeedURL = "feedurl"
	// TagTrimmed 首尾无空白
	TagTrimmed = "trimmed"
)

// Validator validates structs and translates failures.
type Validator struct {
	validate *validator.Validate
	trans    map[string]ut.Translator
}

var (
	global *Validator
	once   sync.Once
)

// Global returns the process-wide validator.
func Global() *Validator {
	once.Do(func() {
		global = New()
	})
	return global
}

// New creates a Validator with en and zh translations.
func New() *Validator {
	v := &Validator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		trans:    make(map[string]ut.Translator),
	}
	v.validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale, zh.New())
	enTrans, _ := uni.GetTranslator(LangEN)
	_ = en_translations.RegisterDefaultTranslations(v.validate, enTrans)
	v.trans[LangEN] = enTrans
	zhTrans, _ := uni.GetTranslator(LangZH)
	_ = zh_translations.RegisterDefaultTranslations(v.validate, zhTrans)
	v.trans[LangZH] = zhTrans

	_ = v.validate.RegisterValidation(TagFeedURL, validateFeedURL)
	_ = v.validate.RegisterValidation(TagTrimmed, validateTrimmed)
	v.registerTranslation(TagFeedURL, map[string]string{
		LangEN: "{0} must be an absolute http(s) URL",
		LangZH: "{0}必须是完整的 http(s) 地址",
	})
	v.registerTranslation(TagTrimmed, map[string]string{
		LangEN: "{0} must not have leading or trailing spaces",
		LangZH: "{0}首尾不能包含空白字符",
	})
	return v
}

func (v *Validator) registerTranslation(tag string, messages map[string]string) {
	for lang, msg := range messages {
		trans, ok := v.trans[lang]
		if !ok {
			continue
		}
		_ = v.validate.RegisterTranslation(tag, trans,
			func(ut ut.Translator) error {
				return ut.Add(tag, msg, true)
			},
			func(ut ut.Translator, fe validator.FieldError) string {
				t, _ := ut.T(tag, fe.Field())
				return t
			},
		)
	}
}

// Struct validates s. Failures are returned as ErrNewsValidation listing
// every failed field.
func (v *Validator) Struct(s any) error {
	return v.StructWithLang(s, LangEN)
}

// StructWithLang is Struct with messages in lang.
func (v *Validator) StructWithLang(s any, lang string) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.ErrNewsValidation.WithMessage(err.Error())
	}
	trans, ok := v.trans[lang]
	if !ok {
		trans = v.trans[LangEN]
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Translate(trans))
	}
	return errors.ErrNewsValidation.WithMessage(strings.Join(msgs, "; "))
}

// Struct validates s with the global validator.
func Struct(s any) error {
	return Global().Struct(s)
}

func validateFeedURL(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	u, err := url.Parse(value)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func validateTrimmed(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	return value == strings.TrimSpace(value)
}
