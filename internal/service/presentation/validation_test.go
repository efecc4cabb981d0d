package presentation

import (
	"testing"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/pipprompter/server/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumberRulesRejectZero(t *testing.T) {
	for name, rules := range map[string][]validation.Rule{
		"fontSize": FontSizeRule,
		"speed":    SpeedRule,
	} {
		t.Run(name, func(t *testing.T) {
			v, err := decodeNumber(rules...)([]byte("0"))
			require.Error(t, err)
			assert.Nil(t, v)

			fe := toFieldError(domain.FieldSpeed, err)
			assert.Equal(t, domain.CodeOutOfRange, fe.Code)
		})
	}
}

func TestNumberRulesBounds(t *testing.T) {
	_, err := decodeNumber(SpeedRule...)([]byte("1"))
	assert.NoError(t, err)
	_, err = decodeNumber(SpeedRule...)([]byte("100"))
	assert.NoError(t, err)

	_, err = decodeNumber(SpeedRule...)([]byte("100.5"))
	require.Error(t, err)
	assert.Equal(t, "must be no greater than 100", err.Error())

	_, err = decodeNumber(FontSizeRule...)([]byte("9"))
	require.Error(t, err)
	assert.Equal(t, "must be no less than 10", err.Error())
	assert.Equal(t, domain.CodeOutOfRange, toFieldError(domain.FieldFontSize, err).Code)
}
