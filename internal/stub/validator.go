package stub

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	govalidator "github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	setupOnce sync.Once
	trans     ut.Translator
)

// setupValidator registers English translations and JSON tag names on
// Gin's binding engine. Safe to call from every server constructor.
func setupValidator() {
	setupOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*govalidator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		enLocale := en.New()
		uni := ut.New(enLocale, enLocale)
		trans, _ = uni.GetTranslator("en")
		_ = en_translations.RegisterDefaultTranslations(v, trans)
	})
}

// bindJSON binds and validates the request body into dst. Returns nil
// on success or a field → message map on failure.
func bindJSON(c *gin.Context, dst interface{}) map[string]string {
	if err := c.ShouldBindJSON(dst); err != nil {
		fields := make(map[string]string)
		var ve govalidator.ValidationErrors
		if errors.As(err, &ve) {
			for _, fe := range ve {
				fields[fe.Field()] = fe.Translate(trans)
			}
			return fields
		}
		fields["detail"] = err.Error()
		return fields
	}
	return nil
}
