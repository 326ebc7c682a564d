package template

import (
	"bytes"
	"fmt"
	"strings"
	texttemplate "text/template"
	"unicode/utf8"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"

	"github.com/entretech/zapnotify/internal/usecase"
)

// limite de corpo do WhatsApp
const maxMessageRunes = 4096

// Renderer implementa usecase.Renderer com text/template para os corpos
// de mensagem e tengo para as expressões de condição das regras.
type Renderer struct {
	funcs texttemplate.FuncMap
}

func NewRenderer() *Renderer {
	return &Renderer{
		funcs: texttemplate.FuncMap{
			// formatação do WhatsApp
			"bold":   func(s string) string { return "*" + s + "*" },
			"italic": func(s string) string { return "_" + s + "_" },
			"strike": func(s string) string { return "~" + s + "~" },
			"code":   func(s string) string { return "```" + s + "```" },
			"upper":  strings.ToUpper,
			"lower":  strings.ToLower,
			"money": func(v interface{}) string {
				switch n := v.(type) {
				case float64:
					return fmt.Sprintf("%.2f", n)
				case int:
					return fmt.Sprintf("%d.00", n)
				case int64:
					return fmt.Sprintf("%d.00", n)
				case string:
					return n
				default:
					return fmt.Sprintf("%v", v)
				}
			},
		},
	}
}

// Render executa o template contra o documento. Campos ausentes viram
// string vazia em vez de erro; erro de sintaxe ou de execução vem como
// erro normal para o chamador classificar.
func (r *Renderer) Render(templateText string, ctx usecase.RenderContext) (string, error) {
	tpl, err := texttemplate.New("message").
		Funcs(r.funcs).
		Option("missingkey=zero").
		Parse(templateText)
	if err != nil {
		return "", fmt.Errorf("template inválido: %w", err)
	}

	data := map[string]interface{}{
		"doc": ctx.Doc,
		"now": ctx.Now,
	}
	// atalho: campos do documento também ficam no topo ({{.customer_name}})
	for k, v := range ctx.Doc {
		if k != "doc" && k != "now" {
			data[k] = v
		}
	}

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execução do template falhou: %w", err)
	}

	out := strings.ReplaceAll(buf.String(), "<no value>", "")
	return truncateRunes(out, maxMessageRunes), nil
}

// EvalCondition avalia a expressão com o documento disponível como `doc`.
// Expressão vazia é sempre verdadeira.
func (r *Renderer) EvalCondition(expr string, ctx usecase.RenderContext) (bool, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return true, nil
	}

	script := tengo.NewScript([]byte(fmt.Sprintf("__result__ := (%s)", expr)))
	script.SetImports(stdlib.GetModuleMap("text", "math", "times"))

	if err := script.Add("doc", sanitizeForScript(ctx.Doc)); err != nil {
		return false, fmt.Errorf("condição: %w", err)
	}
	if err := script.Add("now", ctx.Now); err != nil {
		return false, fmt.Errorf("condição: %w", err)
	}

	compiled, err := script.Run()
	if err != nil {
		return false, fmt.Errorf("condição inválida: %w", err)
	}

	v := compiled.Get("__result__")
	if v == nil {
		return false, fmt.Errorf("condição não produziu resultado")
	}
	return v.Bool(), nil
}

// sanitizeForScript remove valores que o interpretador não converte
// (nil profundo, tipos exóticos) trocando por representações seguras.
func sanitizeForScript(doc map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(doc))
	for k, v := range doc {
		out[k] = sanitizeValue(v)
	}
	return out
}

func sanitizeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case nil:
		return tengo.UndefinedValue
	case map[string]interface{}:
		return sanitizeForScript(t)
	case []interface{}:
		items := make([]interface{}, len(t))
		for i, item := range t {
			items[i] = sanitizeValue(item)
		}
		return items
	case string, bool, int, int64, float64:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}

// truncateRunes corta em limite de runas, recuando até um espaço para não
// partir palavra no meio
func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	cut := max
	for i := max - 1; i > max-80 && i > 0; i-- {
		if runes[i] == ' ' || runes[i] == '\n' {
			cut = i
			break
		}
	}
	return strings.TrimRight(string(runes[:cut]), " \n")
}
