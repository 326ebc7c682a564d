package template

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entretech/zapnotify/internal/usecase"
)

func renderCtx(doc map[string]interface{}) usecase.RenderContext {
	return usecase.RenderContext{Doc: doc, Now: "2026-08-24T10:00:00Z"}
}

func TestRender(t *testing.T) {
	r := NewRenderer()

	t.Run("campos do documento no topo e em .doc", func(t *testing.T) {
		doc := map[string]interface{}{"customer_name": "Amélia", "total": 1500.5}

		out, err := r.Render("Olá {{.customer_name}}, total {{money .total}}", renderCtx(doc))
		require.NoError(t, err)
		assert.Equal(t, "Olá Amélia, total 1500.50", out)

		out, err = r.Render("{{.doc.customer_name}}", renderCtx(doc))
		require.NoError(t, err)
		assert.Equal(t, "Amélia", out)
	})

	t.Run("helpers de formatação do WhatsApp", func(t *testing.T) {
		out, err := r.Render(`{{bold "urgente"}} {{italic "talvez"}}`, renderCtx(nil))
		require.NoError(t, err)
		assert.Equal(t, "*urgente* _talvez_", out)
	})

	t.Run("campo ausente vira vazio, não erro", func(t *testing.T) {
		out, err := r.Render("X{{.nao_existe}}Y", renderCtx(map[string]interface{}{}))
		require.NoError(t, err)
		assert.Equal(t, "XY", out)
	})

	t.Run("sintaxe inválida é erro", func(t *testing.T) {
		_, err := r.Render("{{.aberto", renderCtx(nil))
		assert.Error(t, err)
	})

	t.Run("corpo longo é truncado em limite de palavra", func(t *testing.T) {
		long := strings.Repeat("palavra ", 1000) // bem acima de 4096 runas
		out, err := r.Render(long, renderCtx(nil))
		require.NoError(t, err)
		assert.LessOrEqual(t, len([]rune(out)), 4096)
		assert.False(t, strings.HasSuffix(out, " "))
		// não corta no meio de "palavra"
		assert.True(t, strings.HasSuffix(out, "palavra"))
	})
}

func TestEvalCondition(t *testing.T) {
	r := NewRenderer()
	doc := map[string]interface{}{
		"status":      "Paid",
		"grand_total": 1500.5,
		"items": []interface{}{
			map[string]interface{}{"qty": 2},
		},
	}

	t.Run("expressão vazia é sempre verdadeira", func(t *testing.T) {
		ok, err := r.EvalCondition("", renderCtx(doc))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("comparações sobre o documento", func(t *testing.T) {
		ok, err := r.EvalCondition(`doc.status == "Paid"`, renderCtx(doc))
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = r.EvalCondition(`doc.grand_total > 2000`, renderCtx(doc))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("expressão composta", func(t *testing.T) {
		ok, err := r.EvalCondition(`doc.status == "Paid" && doc.grand_total > 1000`, renderCtx(doc))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("sintaxe inválida é erro, não pânico", func(t *testing.T) {
		_, err := r.EvalCondition(`doc.status ==`, renderCtx(doc))
		assert.Error(t, err)
	})

	t.Run("campo inexistente compara como undefined", func(t *testing.T) {
		ok, err := r.EvalCondition(`doc.nao_existe == "x"`, renderCtx(doc))
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
