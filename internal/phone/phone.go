// Package phone normaliza números de telefone para o formato que o
// WhatsApp aceita: só dígitos, com código do país.
package phone

import (
	"fmt"
	"strings"
)

// MinDigits é o mínimo de dígitos significativos para um número dialável
const MinDigits = 7

// InvalidPhoneError indica entrada que não vira um número dialável.
// Não é fatal: o destinatário é descartado com aviso.
type InvalidPhoneError struct {
	Input  string
	Reason string
}

func (e *InvalidPhoneError) Error() string {
	return fmt.Sprintf("número inválido %q: %s", e.Input, e.Reason)
}

// Normalizer aplica as regras do país configurado
type Normalizer struct {
	CountryCode   string
	LocalLength   int
	LocalPrefixes []string
}

func NewNormalizer(countryCode string, localLength int, prefixes []string) *Normalizer {
	return &Normalizer{
		CountryCode:   countryCode,
		LocalLength:   localLength,
		LocalPrefixes: prefixes,
	}
}

// IsGroupID reconhece IDs de grupo do WhatsApp, que passam direto
func IsGroupID(recipient string) bool {
	return strings.Contains(recipient, "@g.us")
}

// Normalize canonicaliza um número cru:
//
//	"84 123 4567"   → "258841234567"
//	"+258841234567" → "258841234567"
//	"258841234567"  → "258841234567"
//
// Números com comprimento local que já começam com o código do país, ou
// que não batem com nenhum prefixo local configurado, passam sem mexer.
func (n *Normalizer) Normalize(raw string) (string, error) {
	if IsGroupID(raw) {
		return raw, nil
	}

	digits := stripNonDigits(raw)
	if digits == "" {
		return "", &InvalidPhoneError{Input: raw, Reason: "sem dígitos"}
	}
	if len(digits) < MinDigits {
		return "", &InvalidPhoneError{Input: raw, Reason: "menos de 7 dígitos"}
	}

	if len(digits) == n.LocalLength && !strings.HasPrefix(digits, n.CountryCode) {
		if n.isLocal(digits) {
			digits = n.CountryCode + digits
		}
	}

	return digits, nil
}

func (n *Normalizer) isLocal(digits string) bool {
	// Sem prefixos configurados, qualquer número do tamanho local é local
	if len(n.LocalPrefixes) == 0 {
		return true
	}
	for _, p := range n.LocalPrefixes {
		if p != "" && strings.HasPrefix(digits, p) {
			return true
		}
	}
	return false
}

// ForDisplay formata para exibição em comentários e logs ("+258841234567")
func ForDisplay(phone string) string {
	digits := stripNonDigits(phone)
	if digits == "" {
		return phone
	}
	if len(digits) > 9 {
		return "+" + digits
	}
	return digits
}

// Suffix devolve os últimos n dígitos, para matching tolerante a código
// de país nos webhooks
func Suffix(phone string, n int) string {
	digits := stripNonDigits(phone)
	if len(digits) <= n {
		return digits
	}
	return digits[len(digits)-n:]
}

func stripNonDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
