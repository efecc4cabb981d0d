package presentation

import (
	"encoding/json"
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/pipprompter/server/internal/domain"
	"github.com/pipprompter/server/pkg/colorhex"
)

const maxTextLength = 100_000

var TextRule = []validation.Rule{
	validation.RuneLength(0, maxTextLength),
}

var ColorRule = []validation.Rule{
	validation.Required,
	validation.By(isHexColor),
}

var FontSizeRule = []validation.Rule{
	inRange(domain.MinFontSize, domain.MaxFontSize),
}

var SpeedRule = []validation.Rule{
	inRange(domain.MinSpeed, domain.MaxSpeed),
}

var ScaleRule = []validation.Rule{
	validation.Required,
	validation.By(isScale),
}

// inRange is Min and Max without their skip on empty values: zero is a
// number like any other here.
func inRange(min, max float64) validation.Rule {
	return validation.By(func(value interface{}) error {
		n, _ := value.(float64)
		switch {
		case n < min:
			return validation.ErrMinGreaterEqualThanRequired.SetParams(map[string]interface{}{"threshold": min})
		case n > max:
			return validation.ErrMaxLessEqualThanRequired.SetParams(map[string]interface{}{"threshold": max})
		}

		return nil
	})
}

func isHexColor(value interface{}) error {
	s, _ := value.(string)
	if _, err := colorhex.Parse(s); err != nil {
		return validation.NewError("validation_is_hex_color", "must be a hex color with 3, 4, 6 or 8 digits")
	}

	return nil
}

func isScale(value interface{}) error {
	s, _ := value.(string)
	if _, err := domain.ParseScale(s); err != nil {
		return validation.NewError("validation_is_scale", fmt.Sprintf("must be one of %v", domain.Scales))
	}

	return nil
}

type fieldDecoder func(raw json.RawMessage) (any, error)

// wireFields lists what a remote client may change. Keys missing here,
// including the bind address and the status flags, are ignored.
var wireFields = map[string]struct {
	field  domain.Field
	decode fieldDecoder
}{
	"text":              {domain.FieldText, decodeString(TextRule...)},
	"textColorHex":      {domain.FieldTextColorHex, decodeColor},
	"textBackgroundHex": {domain.FieldTextBackgroundHex, decodeColor},
	"fontSize":          {domain.FieldFontSize, decodeNumber(FontSizeRule...)},
	"speed":             {domain.FieldSpeed, decodeNumber(SpeedRule...)},
	"scale":             {domain.FieldScale, decodeScale},
	"autoScroll":        {domain.FieldAutoScroll, decodeBool},
	"scrollProgress":    {domain.FieldScrollProgress, decodeNumber()},
}

var errInvalidType = errors.New("invalid type")

func decodeString(rules ...validation.Rule) fieldDecoder {
	return func(raw json.RawMessage) (any, error) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("%w: expected string", errInvalidType)
		}
		if err := validation.Validate(s, rules...); err != nil {
			return nil, err
		}

		return s, nil
	}
}

func decodeColor(raw json.RawMessage) (any, error) {
	v, err := decodeString(ColorRule...)(raw)
	if err != nil {
		return nil, err
	}

	return colorhex.Normalize(v.(string))
}

func decodeNumber(rules ...validation.Rule) fieldDecoder {
	return func(raw json.RawMessage) (any, error) {
		var n float64
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, fmt.Errorf("%w: expected number", errInvalidType)
		}
		if err := validation.Validate(n, rules...); err != nil {
			return nil, err
		}

		return n, nil
	}
}

func decodeScale(raw json.RawMessage) (any, error) {
	v, err := decodeString(ScaleRule...)(raw)
	if err != nil {
		return nil, err
	}

	return domain.ParseScale(v.(string))
}

func decodeBool(raw json.RawMessage) (any, error) {
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("%w: expected boolean", errInvalidType)
	}

	return b, nil
}

func toFieldError(field domain.Field, err error) domain.FieldError {
	if errors.Is(err, errInvalidType) {
		return domain.FieldError{Field: field, Code: domain.CodeInvalidType, Message: err.Error()}
	}

	var ve validation.Error
	if errors.As(err, &ve) {
		code := domain.CodeInvalid
		switch ve.Code() {
		case validation.ErrMinGreaterEqualThanRequired.Code(), validation.ErrMaxLessEqualThanRequired.Code():
			code = domain.CodeOutOfRange
		}

		return domain.FieldError{Field: field, Code: code, Message: ve.Error()}
	}

	return domain.FieldError{Field: field, Code: domain.CodeInvalid, Message: err.Error()}
}
