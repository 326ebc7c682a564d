package usecase

import (
	"context"
	"log"
	"strings"

	"github.com/entretech/zapnotify/internal/entity"
)

// RecipientResolver expande regra + documento num conjunto de números
// normalizados. Duplicados colapsam; número inválido é descartado com
// aviso, nunca derruba a resolução inteira.
type RecipientResolver struct {
	Normalizer PhoneNormalizer
	Transport  Transport
}

func NewRecipientResolver(normalizer PhoneNormalizer, transport Transport) *RecipientResolver {
	return &RecipientResolver{Normalizer: normalizer, Transport: transport}
}

// Resolved é um destinatário pronto para envio
type Resolved struct {
	Phone   string // normalizado (ou ID de grupo)
	Raw     string // como veio
	IsGroup bool
}

func (r *RecipientResolver) Resolve(ctx context.Context, rule entity.NotificationRule, doc entity.Document) ([]Resolved, error) {
	var raw []string

	switch rule.RecipientType {
	case entity.RecipientFieldValue:
		raw = r.fromField(rule, doc)
	case entity.RecipientFixedNumber:
		raw = fromFixedList(rule.FixedRecipients)
	case entity.RecipientGroup:
		return r.fromGroup(ctx, rule)
	case entity.RecipientBoth:
		raw = append(r.fromField(rule, doc), fromFixedList(rule.FixedRecipients)...)
	case entity.RecipientPhoneAndGroup:
		resolved := r.normalizeAll(r.fromField(rule, doc))
		group, err := r.fromGroup(ctx, rule)
		if err != nil {
			// grupo indisponível não derruba os números de campo
			log.Printf("⚠️ Regra %s: grupo %s indisponível: %v", rule.RuleName, rule.GroupID, err)
		} else {
			resolved = append(resolved, group...)
		}
		return dedupe(resolved), nil
	default:
		return nil, nil
	}

	return dedupe(r.normalizeAll(raw)), nil
}

func (r *RecipientResolver) fromField(rule entity.NotificationRule, doc entity.Document) []string {
	if rule.PhoneField == "" {
		return nil
	}
	value := doc.GetString(rule.PhoneField)
	if value == "" {
		// campo vazio = ninguém para notificar; skip, não erro
		return nil
	}
	return []string{value}
}

func fromFixedList(fixed string) []string {
	var out []string
	for _, p := range strings.Split(fixed, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// fromGroup resolve a lista de membros na hora do envio, nunca cacheada
// na regra
func (r *RecipientResolver) fromGroup(ctx context.Context, rule entity.NotificationRule) ([]Resolved, error) {
	if rule.GroupID == "" {
		return nil, nil
	}

	members, err := r.Transport.FetchGroupParticipants(ctx, rule.GroupID)
	if err != nil {
		return nil, err
	}

	resolved := make([]Resolved, 0, len(members))
	for _, m := range members {
		normalized, err := r.Normalizer.Normalize(m)
		if err != nil {
			log.Printf("⚠️ Membro de grupo descartado: %v", err)
			continue
		}
		resolved = append(resolved, Resolved{Phone: normalized, Raw: m})
	}
	return dedupe(resolved), nil
}

func (r *RecipientResolver) normalizeAll(raw []string) []Resolved {
	resolved := make([]Resolved, 0, len(raw))
	for _, p := range raw {
		normalized, err := r.Normalizer.Normalize(p)
		if err != nil {
			log.Printf("⚠️ Destinatário descartado: %v", err)
			continue
		}
		resolved = append(resolved, Resolved{Phone: normalized, Raw: p})
	}
	return resolved
}

func dedupe(in []Resolved) []Resolved {
	seen := make(map[string]bool, len(in))
	out := make([]Resolved, 0, len(in))
	for _, r := range in {
		if seen[r.Phone] {
			continue
		}
		seen[r.Phone] = true
		out = append(out, r)
	}
	return out
}
