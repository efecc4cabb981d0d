package domain

import (
	"errors"
	"fmt"
	"strings"
)

const (
	MinFontSize = 10
	MaxFontSize = 100

	MinSpeed = 1
	MaxSpeed = 100

	MinScrollProgress = 0
	MaxScrollProgress = 100

	MinServerPort = 1
	MaxServerPort = 65535
)

var ErrUnknownScale = errors.New("unknown scale")

// Scale selects the looping video asset backing the picture-in-picture layer.
type Scale string

const (
	Scale1x1 Scale = "1x1"
	Scale2x1 Scale = "2x1"
	Scale3x1 Scale = "3x1"
	Scale3x2 Scale = "3x2"
	Scale4x3 Scale = "4x3"
)

var Scales = []Scale{Scale1x1, Scale2x1, Scale3x1, Scale3x2, Scale4x3}

// ParseScale accepts both the ratio form ("3x1") and the asset form ("h3x1").
func ParseScale(s string) (Scale, error) {
	normalized := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "h")
	for _, scale := range Scales {
		if string(scale) == normalized {
			return scale, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownScale, s)
}

// AssetName is the media resource name the presentation layer resolves.
func (s Scale) AssetName() string {
	return "h" + string(s)
}

type PresentationState struct {
	Revision          uint64  `json:"revision"`
	Text              string  `json:"text"`
	TextColorHex      string  `json:"textColorHex"`
	TextBackgroundHex string  `json:"textBackgroundHex"`
	FontSize          float64 `json:"fontSize"`
	Speed             float64 `json:"speed"`
	Scale             Scale   `json:"scale"`
	AutoScroll        bool    `json:"autoScroll"`
	ScrollProgress    float64 `json:"scrollProgress"`
	ServerAddress     string  `json:"serverAddress"`
	ServerPort        int     `json:"serverPort"`
	IsRunning         bool    `json:"isRunning"`
	IsPipMode         bool    `json:"isPipMode"`
}

func DefaultState() PresentationState {
	return PresentationState{
		Text:              "PlaceHolder",
		TextColorHex:      "FFFFFF",
		TextBackgroundHex: "000000",
		FontSize:          30,
		Speed:             1,
		Scale:             Scale3x1,
		AutoScroll:        false,
		ScrollProgress:    0,
		ServerAddress:     "0.0.0.0",
		ServerPort:        8080,
	}
}

func ClampScrollProgress(v float64) float64 {
	if v < MinScrollProgress {
		return MinScrollProgress
	}
	if v > MaxScrollProgress {
		return MaxScrollProgress
	}

	return v
}

// Diff lists the fields whose values differ between two snapshots.
// Revision and status flags are not fields and are not reported.
func Diff(prev, next PresentationState) []Field {
	var changed []Field
	for _, f := range AllFields {
		if prev.value(f) != next.value(f) {
			changed = append(changed, f)
		}
	}

	return changed
}

func (s PresentationState) value(f Field) any {
	switch f {
	case FieldText:
		return s.Text
	case FieldTextColorHex:
		return s.TextColorHex
	case FieldTextBackgroundHex:
		return s.TextBackgroundHex
	case FieldFontSize:
		return s.FontSize
	case FieldSpeed:
		return s.Speed
	case FieldScale:
		return s.Scale
	case FieldAutoScroll:
		return s.AutoScroll
	case FieldScrollProgress:
		return s.ScrollProgress
	case FieldServerAddress:
		return s.ServerAddress
	case FieldServerPort:
		return s.ServerPort
	}

	return nil
}
