package domain

import (
	"fmt"
	"math"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type Field string

const (
	FieldText              Field = "text"
	FieldTextColorHex      Field = "textColorHex"
	FieldTextBackgroundHex Field = "textBackgroundHex"
	FieldFontSize          Field = "fontSize"
	FieldSpeed             Field = "speed"
	FieldScale             Field = "scale"
	FieldAutoScroll        Field = "autoScroll"
	FieldScrollProgress    Field = "scrollProgress"
	FieldServerAddress     Field = "serverAddress"
	FieldServerPort        Field = "serverPort"
)

var AllFields = []Field{
	FieldText,
	FieldTextColorHex,
	FieldTextBackgroundHex,
	FieldFontSize,
	FieldSpeed,
	FieldScale,
	FieldAutoScroll,
	FieldScrollProgress,
	FieldServerAddress,
	FieldServerPort,
}

// IsBinding reports whether the field may only change while the control
// server is not running.
func (f Field) IsBinding() bool {
	return f == FieldServerAddress || f == FieldServerPort
}

const (
	CodeInvalidType  = "INVALID_TYPE"
	CodeInvalid      = "INVALID"
	CodeOutOfRange   = "OUT_OF_RANGE"
	CodeLocked       = "LOCKED"
	CodeUnknownField = "UNKNOWN_FIELD"
)

type FieldError struct {
	Field   Field  `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Patch is a sparse update: only present keys are applied.
// Values are already typed: string, float64, int, bool or Scale.
type Patch map[Field]any

// Fields returns the present fields in a stable order.
func (p Patch) Fields() []Field {
	fields := maps.Keys(p)
	slices.Sort(fields)
	return fields
}

// ApplyField writes a single typed value, enforcing the structural invariants
// of the state. Scroll progress is clamped, other ranges are rejected.
func (s *PresentationState) ApplyField(f Field, v any) error {
	switch f {
	case FieldText:
		text, ok := v.(string)
		if !ok {
			return invalidType(f, v)
		}
		s.Text = text
	case FieldTextColorHex:
		hex, ok := v.(string)
		if !ok {
			return invalidType(f, v)
		}
		s.TextColorHex = hex
	case FieldTextBackgroundHex:
		hex, ok := v.(string)
		if !ok {
			return invalidType(f, v)
		}
		s.TextBackgroundHex = hex
	case FieldFontSize:
		size, err := numberInRange(f, v, MinFontSize, MaxFontSize)
		if err != nil {
			return err
		}
		s.FontSize = size
	case FieldSpeed:
		speed, err := numberInRange(f, v, MinSpeed, MaxSpeed)
		if err != nil {
			return err
		}
		s.Speed = speed
	case FieldScale:
		scale, ok := v.(Scale)
		if !ok {
			return invalidType(f, v)
		}
		if !slices.Contains(Scales, scale) {
			return FieldError{Field: f, Code: CodeInvalid, Message: fmt.Sprintf("unknown scale %q", scale)}
		}
		s.Scale = scale
	case FieldAutoScroll:
		autoScroll, ok := v.(bool)
		if !ok {
			return invalidType(f, v)
		}
		s.AutoScroll = autoScroll
	case FieldScrollProgress:
		progress, ok := v.(float64)
		if !ok {
			return invalidType(f, v)
		}
		if math.IsNaN(progress) {
			return FieldError{Field: f, Code: CodeInvalid, Message: "must be a number"}
		}
		s.ScrollProgress = ClampScrollProgress(progress)
	case FieldServerAddress:
		address, ok := v.(string)
		if !ok {
			return invalidType(f, v)
		}
		s.ServerAddress = address
	case FieldServerPort:
		port, ok := v.(int)
		if !ok {
			return invalidType(f, v)
		}
		if port < MinServerPort || port > MaxServerPort {
			return FieldError{Field: f, Code: CodeOutOfRange, Message: fmt.Sprintf("must be between %d and %d", MinServerPort, MaxServerPort)}
		}
		s.ServerPort = port
	default:
		return FieldError{Field: f, Code: CodeUnknownField, Message: "unknown field"}
	}

	return nil
}

func invalidType(f Field, v any) error {
	return FieldError{Field: f, Code: CodeInvalidType, Message: fmt.Sprintf("unexpected type %T", v)}
}

func numberInRange(f Field, v any, min, max float64) (float64, error) {
	n, ok := v.(float64)
	if !ok {
		return 0, invalidType(f, v)
	}
	if math.IsNaN(n) || n < min || n > max {
		return 0, FieldError{Field: f, Code: CodeOutOfRange, Message: fmt.Sprintf("must be between %v and %v", min, max)}
	}

	return n, nil
}
