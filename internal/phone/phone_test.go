package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func mozambique() *Normalizer {
	return NewNormalizer("258", 9, []string{"82", "83", "84", "85", "86", "87"})
}

func TestNormalize(t *testing.T) {
	n := mozambique()

	t.Run("número local ganha código do país", func(t *testing.T) {
		got, err := n.Normalize("84 123 4567")
		assert.NoError(t, err)
		assert.Equal(t, "258841234567", got)
	})

	t.Run("número já com código passa sem mexer", func(t *testing.T) {
		got, err := n.Normalize("258841234567")
		assert.NoError(t, err)
		assert.Equal(t, "258841234567", got)
	})

	t.Run("formatação é descartada", func(t *testing.T) {
		got, err := n.Normalize("+258 84-123-4567")
		assert.NoError(t, err)
		assert.Equal(t, "258841234567", got)
	})

	t.Run("idempotente", func(t *testing.T) {
		once, err := n.Normalize("841234567")
		assert.NoError(t, err)
		twice, err := n.Normalize(once)
		assert.NoError(t, err)
		assert.Equal(t, once, twice)
	})

	t.Run("prefixo fora da lista local não ganha código", func(t *testing.T) {
		// 9 dígitos mas começa com 71: não é móvel local
		got, err := n.Normalize("711234567")
		assert.NoError(t, err)
		assert.Equal(t, "711234567", got)
	})

	t.Run("número internacional passa direto", func(t *testing.T) {
		got, err := n.Normalize("5511999998888")
		assert.NoError(t, err)
		assert.Equal(t, "5511999998888", got)
	})

	t.Run("ID de grupo passa intacto", func(t *testing.T) {
		got, err := n.Normalize("1203630XXXX@g.us")
		assert.NoError(t, err)
		assert.Equal(t, "1203630XXXX@g.us", got)
	})

	t.Run("menos de 7 dígitos é inválido", func(t *testing.T) {
		_, err := n.Normalize("12345")
		assert.Error(t, err)

		var invalid *InvalidPhoneError
		assert.ErrorAs(t, err, &invalid)
	})

	t.Run("sem dígitos é inválido", func(t *testing.T) {
		_, err := n.Normalize("abc-def")
		assert.Error(t, err)
	})

	t.Run("sem prefixos configurados qualquer local vale", func(t *testing.T) {
		open := NewNormalizer("258", 9, nil)
		got, err := open.Normalize("711234567")
		assert.NoError(t, err)
		assert.Equal(t, "258711234567", got)
	})
}

func TestForDisplay(t *testing.T) {
	assert.Equal(t, "+258841234567", ForDisplay("258841234567"))
	assert.Equal(t, "841234567", ForDisplay("841234567"))
}

func TestSuffix(t *testing.T) {
	assert.Equal(t, "841234567", Suffix("+258 84 123 4567", 9))
	assert.Equal(t, "1234567", Suffix("1234567", 9))
}
