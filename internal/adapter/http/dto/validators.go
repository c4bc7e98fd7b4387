package dto

import (
	"html"
	"reflect"
	"regexp"
	"strings"

	"cryptosim/internal/core/domain"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// safeNameRe admits letters, digits, spaces and a few separators.
var safeNameRe = regexp.MustCompile(`^[\p{L}\p{N} _\-\.@+]+$`)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		RegisterValidators(v)
	}
}

// RegisterValidators installs the custom tags on v.
func RegisterValidators(v *validator.Validate) {
	_ = v.RegisterValidation("safe_name", validateSafeName)
	_ = v.RegisterValidation("currency", validateCurrency)
	_ = v.RegisterValidation("trade_side", validateTradeSide)
	_ = v.RegisterValidation("pay_method", validatePayMethod)
	_ = v.RegisterValidation("amount", validateScaled(domain.AmountScale))
	_ = v.RegisterValidation("btc_amount", validateScaled(domain.BTCScale))
}

func validateSafeName(fl validator.FieldLevel) bool {
	return safeNameRe.MatchString(fl.Field().String())
}

func validateCurrency(fl validator.FieldLevel) bool {
	_, err := domain.ParseCurrency(fl.Field().String())
	return err == nil
}

func validateTradeSide(fl validator.FieldLevel) bool {
	_, err := domain.ParseTradeSide(fl.Field().String())
	return err == nil
}

func validatePayMethod(fl validator.FieldLevel) bool {
	_, err := domain.ParsePayMethod(fl.Field().String())
	return err == nil
}

// validateScaled accepts non-negative decimal strings with at most places
// fractional digits that fit the column bound. Zero is left to the service to reject where it matters.
func validateScaled(places int32) validator.Func {
	return func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(strings.TrimSpace(fl.Field().String()))
		if err != nil {
			return false
		}
		return !d.IsNegative() && domain.HasScale(d, places) && domain.WithinLimit(d, places)
	}
}

// SanitizeStruct trims whitespace and HTML-escapes every exported string
// field (including *string) of a struct pointer. Fields tagged
// `sanitize:"-"` are left untouched: secrets, hash inputs and free text
// that is stored verbatim and only ever emitted as JSON.
func SanitizeStruct(v interface{}) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return
	}
	sanitizeFields(rv.Elem())
}

func sanitizeFields(rv reflect.Value) {
	rt := rv.Type()
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if !f.CanSet() || rt.Field(i).Tag.Get("sanitize") == "-" {
			continue
		}
		switch f.Kind() {
		case reflect.String:
			f.SetString(sanitize(f.String()))
		case reflect.Ptr:
			if f.IsNil() {
				continue
			}
			if elem := f.Elem(); elem.Kind() == reflect.String {
				elem.SetString(sanitize(elem.String()))
			}
		case reflect.Struct:
			sanitizeFields(f)
		}
	}
}

func sanitize(s string) string {
	return html.EscapeString(strings.TrimSpace(s))
}

// ParseAmount converts a validated amount string. Empty means zero.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
