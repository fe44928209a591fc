package validator

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var trans ut.Translator

// Init configures the gin binding validator to report json field names and
// translated messages.
func Init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		locale := en.New()
		uni := ut.New(locale, locale)
		trans, _ = uni.GetTranslator("en")

		_ = en_translations.RegisterDefaultTranslations(v, trans)
	}
}

// ParseError converts raw validation errors into a field-to-message map.
func ParseError(err error) map[string]string {
	errMap := make(map[string]string)

	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrors {
			ns := e.Namespace()
			if i := strings.Index(ns, "."); i != -1 {
				ns = ns[i+1:]
			}

			msg := e.Translate(trans)
			if e.Tag() == "oneof" {
				msg = fmt.Sprintf("must be one of [%s]", strings.ReplaceAll(e.Param(), " ", ", "))
			}

			errMap[ns] = msg
		}
		return errMap
	}

	errMap["body"] = "Invalid request body format."
	return errMap
}

// FormatError flattens the parsed map into one client-facing message.
func FormatError(err error) string {
	parsed := ParseError(err)
	fields := make([]string, 0, len(parsed))
	for field := range parsed {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, parsed[field]))
	}
	return strings.Join(parts, "; ")
}
