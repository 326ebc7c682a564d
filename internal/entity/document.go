package entity

import (
	"strconv"
	"strings"
	"time"
)

// EventType é o evento de ciclo de vida do documento no ERP
type EventType string

const (
	EventInsert EventType = "Insert"
	EventUpdate EventType = "Update"
	EventSubmit EventType = "Submit"
	EventCancel EventType = "Cancel"
	EventChange EventType = "Change"
)

// Document é o snapshot imutável que chega com o evento.
// O core não conhece schema de ERP: tudo é um mapa de atributos.
type Document struct {
	Doctype    string                 `json:"doctype"`
	Name       string                 `json:"name"`
	Attributes map[string]interface{} `json:"attributes"`
}

// DocumentEvent é o que o ERP dispara para o serviço
type DocumentEvent struct {
	Type         EventType `json:"event"`
	Document     Document  `json:"document"`
	ChangedField string    `json:"changed_field,omitempty"` // só para Change
	OccurredAt   time.Time `json:"occurred_at"`
}

// TemplateData expõe os atributos para templates e condições com a
// identidade do documento junto: name e doctype sempre resolvem, mesmo
// quando o ERP não os repete dentro dos atributos.
func (d Document) TemplateData() map[string]interface{} {
	data := make(map[string]interface{}, len(d.Attributes)+2)
	for k, v := range d.Attributes {
		data[k] = v
	}
	data["name"] = d.Name
	data["doctype"] = d.Doctype
	return data
}

// Get resolve um caminho com pontos ("customer.mobile_no") e índices
// ("items[0].phone") dentro dos atributos. Retorna nil se qualquer
// segmento não existir.
func (d Document) Get(path string) interface{} {
	if path == "" {
		return nil
	}

	var value interface{} = d.Attributes

	for _, part := range strings.Split(path, ".") {
		field := part
		index := -1

		if i := strings.Index(part, "["); i >= 0 && strings.HasSuffix(part, "]") {
			field = part[:i]
			n, err := strconv.Atoi(part[i+1 : len(part)-1])
			if err != nil {
				return nil
			}
			index = n
		}

		m, ok := value.(map[string]interface{})
		if !ok {
			return nil
		}
		value, ok = m[field]
		if !ok {
			return nil
		}

		if index >= 0 {
			list, ok := value.([]interface{})
			if !ok || index >= len(list) {
				return nil
			}
			value = list[index]
		}
	}

	return value
}

// GetString é o Get com conversão amigável para string
func (d Document) GetString(path string) string {
	v := d.Get(path)
	if v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}
