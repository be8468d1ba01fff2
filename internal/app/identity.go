package app

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"evaluation-service/internal/domain"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var nationalIDPattern = regexp.MustCompile(`^[0-9]{8}$`)

// IdentityValidator checks respondent fields and reports English messages keyed by JSON field name.
type IdentityValidator struct {
	validate *validator.Validate
	trans    ut.Translator
}

func NewIdentityValidator() *IdentityValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("nationalid", func(fl validator.FieldLevel) bool {
		return nationalIDPattern.MatchString(fl.Field().String())
	})

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	trans, _ := uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(v, trans)
	_ = v.RegisterTranslation("nationalid", trans, func(t ut.Translator) error {
		return t.Add("nationalid", "{0} must be exactly 8 digits", true)
	}, func(t ut.Translator, fe validator.FieldError) string {
		msg, _ := t.T("nationalid", fe.Field())
		return msg
	})

	return &IdentityValidator{validate: v, trans: trans}
}

// Normalize trims surrounding whitespace from every field.
func Normalize(r domain.Respondent) domain.Respondent {
	return domain.Respondent{
		FullName:    strings.TrimSpace(r.FullName),
		NationalID:  strings.TrimSpace(r.NationalID),
		JobTitle:    strings.TrimSpace(r.JobTitle),
		CompanyName: strings.TrimSpace(r.CompanyName),
	}
}

// Validate returns a *domain.ValidationError listing every failing field, or nil.
func (iv *IdentityValidator) Validate(r domain.Respondent) error {
	err := iv.validate.Struct(r)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return &domain.ValidationError{Fields: map[string]string{"detail": err.Error()}}
	}
	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		fields[fe.Field()] = fe.Translate(iv.trans)
	}
	return &domain.ValidationError{Fields: fields}
}
