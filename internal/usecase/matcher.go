package usecase

import (
	"context"
	"log"
	"time"

	"github.com/entretech/zapnotify/internal/entity"
)

// RuleSource é de onde o matcher lê as regras (normalmente o RuleCache)
type RuleSource interface {
	FindEnabled(ctx context.Context, documentType string, event entity.EventType) ([]entity.NotificationRule, error)
}

// RuleMatcher seleciona as regras aplicáveis a um evento de documento
type RuleMatcher struct {
	Rules    RuleSource
	Renderer Renderer
	Logs     entity.MessageLogRepository

	// injetável nos testes
	Now func() time.Time
}

func NewRuleMatcher(rules RuleSource, renderer Renderer, logs entity.MessageLogRepository) *RuleMatcher {
	return &RuleMatcher{
		Rules:    rules,
		Renderer: renderer,
		Logs:     logs,
		Now:      time.Now,
	}
}

// Match devolve as regras aplicáveis na ordem de criação. Erro de condição
// numa regra exclui só aquela regra — as irmãs seguem.
func (m *RuleMatcher) Match(ctx context.Context, event entity.DocumentEvent) ([]entity.NotificationRule, error) {
	rules, err := m.Rules.FindEnabled(ctx, event.Document.Doctype, event.Type)
	if err != nil {
		return nil, err
	}

	now := m.Now()
	var matched []entity.NotificationRule

	for _, rule := range rules {
		if !m.applies(ctx, rule, event, now) {
			continue
		}
		matched = append(matched, rule)
	}

	return matched, nil
}

func (m *RuleMatcher) applies(ctx context.Context, rule entity.NotificationRule, event entity.DocumentEvent, now time.Time) bool {
	// Change só dispara quando o campo observado foi o que mudou
	if rule.Event == entity.EventChange && rule.ValueChanged != "" {
		if event.ChangedField != rule.ValueChanged {
			return false
		}
	}

	if !withinActiveHours(rule, now) {
		return false
	}

	if rule.Condition != "" {
		ok, err := m.Renderer.EvalCondition(rule.Condition, RenderContext{
			Doc: event.Document.TemplateData(),
			Now: now.Format(time.RFC3339),
		})
		if err != nil {
			log.Printf("⚠️ Regra %s: condição falhou, pulando: %v", rule.RuleName, err)
			return false
		}
		if !ok {
			return false
		}
	}

	if rule.SendOnce {
		sent, err := m.Logs.ExistsForRule(ctx, rule.ID, event.Document.Doctype, event.Document.Name)
		if err != nil {
			log.Printf("⚠️ Regra %s: falha ao checar send_once: %v", rule.RuleName, err)
		} else if sent {
			return false
		}
	}

	return true
}

// withinActiveHours respeita janelas HH:MM, inclusive viradas de dia
// (22:00–06:00). Configuração inválida não bloqueia notificação.
func withinActiveHours(rule entity.NotificationRule, now time.Time) bool {
	if rule.ActiveHoursStart == "" || rule.ActiveHoursEnd == "" {
		return true
	}

	start, err1 := time.Parse("15:04", rule.ActiveHoursStart)
	end, err2 := time.Parse("15:04", rule.ActiveHoursEnd)
	if err1 != nil || err2 != nil {
		return true
	}

	minutes := now.Hour()*60 + now.Minute()
	startMin := start.Hour()*60 + start.Minute()
	endMin := end.Hour()*60 + end.Minute()

	if startMin <= endMin {
		return minutes >= startMin && minutes <= endMin
	}
	return minutes >= startMin || minutes <= endMin
}
