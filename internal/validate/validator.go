// Package validate checks configuration and records at pipeline boundaries
package validate

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	perr "github.com/ppiankov/wikiedits/internal/errors"
	"github.com/ppiankov/wikiedits/internal/model"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// Validator wraps a configured validator.Validate with english messages
type Validator struct {
	v     *validator.Validate
	trans ut.Translator
}

var (
	once     sync.Once
	instance *Validator
)

// Get returns the process-wide validator
func Get() *Validator {
	once.Do(func() {
		instance = New()
	})
	return instance
}

// New builds a validator with the custom tags used by model types
func New() *Validator {
	enLoc := en.New()
	uni := ut.New(enLoc, enLoc)
	trans, _ := uni.GetTranslator("en")

	v := validator.New(validator.WithRequiredStructEnabled())

	// report yaml names so messages match the config file
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, key := range []string{"yaml", "json"} {
			tag := fld.Tag.Get(key)
			if idx := strings.Index(tag, ","); idx >= 0 {
				tag = tag[:idx]
			}
			if tag != "" && tag != "-" {
				return tag
			}
		}
		return fld.Name
	})

	_ = en_translations.RegisterDefaultTranslations(v, trans)

	_ = v.RegisterValidation("wiki_domain", func(fl validator.FieldLevel) bool {
		_, ok := model.LookupDomain(fl.Field().String())
		return ok
	})
	_ = v.RegisterValidation("category_name", func(fl validator.FieldLevel) bool {
		return ValidCategoryName(fl.Field().String())
	})

	registerMessage(v, trans, "wiki_domain", "{0} must be one of "+strings.Join(model.Domains(), ", "))
	registerMessage(v, trans, "category_name", "{0} must be a non-empty category name without |#[]{}<>")

	return &Validator{v: v, trans: trans}
}

func registerMessage(v *validator.Validate, trans ut.Translator, tag, text string) {
	_ = v.RegisterTranslation(tag, trans,
		func(u ut.Translator) error {
			return u.Add(tag, text, true)
		},
		func(u ut.Translator, fe validator.FieldError) string {
			msg, _ := u.T(tag, fe.Field())
			return msg
		},
	)
}

// ValidCategoryName reports whether s can be used as a MediaWiki category title
func ValidCategoryName(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	return !strings.ContainsAny(s, "|#[]{}<>")
}

// Struct validates any tagged struct, returning a validation error with the first translated message
func (x *Validator) Struct(s any) error {
	err := x.v.Struct(s)
	if err == nil {
		return nil
	}
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fe.Translate(x.trans))
		}
		return perr.Wrap(err, perr.ErrorCodeValidation, strings.Join(msgs, "; "))
	}
	return perr.Wrap(err, perr.ErrorCodeValidation, "validation failed")
}

// Config validates a configuration, including the domain/main-category pairing
func Config(cfg model.Config) error {
	if err := Get().Struct(cfg); err != nil {
		return err
	}
	if len(cfg.Crawl.Categories) > 0 {
		return nil
	}
	if _, ok := model.CategoriesFor(cfg.Domain, cfg.MainCategory); !ok {
		return perr.Newf(perr.ErrorCodeValidation,
			"invalid main category %q for %s (choose from %s)",
			cfg.MainCategory, cfg.Domain, strings.Join(model.WikipediaMainCategories(), ", "))
	}
	return nil
}

// Record validates an edit record before it is written
func Record(rec model.EditRecord) error {
	if err := Get().Struct(rec); err != nil {
		return err
	}
	switch rec.EditType {
	case model.EditAdd:
		if rec.BeforeEdit != nil || rec.AfterEdit == nil {
			return perr.New(perr.ErrorCodeValidation, "add edit must carry only an after span")
		}
	case model.EditDelete:
		if rec.BeforeEdit == nil || rec.AfterEdit != nil {
			return perr.New(perr.ErrorCodeValidation, "delete edit must carry only a before span")
		}
	case model.EditReplace:
		if rec.BeforeEdit == nil || rec.AfterEdit == nil {
			return perr.New(perr.ErrorCodeValidation, "replace edit must carry both spans")
		}
	}
	return nil
}

// Revision validates a crawled revision before it is appended
func Revision(rec model.RevisionRecord) error {
	if err := Get().Struct(rec); err != nil {
		return fmt.Errorf("revision %d: %w", rec.RevID, err)
	}
	return nil
}
