package usecase

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/entretech/zapnotify/internal/entity"
)

// DispatchEngine orquestra render → resolve → send → log para um evento.
// Erros de uma regra ou de um destinatário nunca bloqueiam os irmãos; só
// falha de persistência sobe para o chamador.
type DispatchEngine struct {
	Matcher    *RuleMatcher
	Resolver   *RecipientResolver
	Renderer   Renderer
	Logs       entity.MessageLogRepository
	Sender     *MessageSender
	Producer   QueueProducer
	Normalizer PhoneNormalizer

	// Enabled é o interruptor geral: desligado, os eventos passam direto
	// sem criar nada no log
	Enabled      bool
	QueueEnabled bool
	OwnerNumbers []string

	Now func() time.Time
}

func NewDispatchEngine(
	matcher *RuleMatcher,
	resolver *RecipientResolver,
	renderer Renderer,
	logs entity.MessageLogRepository,
	sender *MessageSender,
	producer QueueProducer,
	normalizer PhoneNormalizer,
	enabled, queueEnabled bool,
	ownerNumbers []string,
) *DispatchEngine {
	return &DispatchEngine{
		Matcher:      matcher,
		Resolver:     resolver,
		Renderer:     renderer,
		Logs:         logs,
		Sender:       sender,
		Producer:     producer,
		Normalizer:   normalizer,
		Enabled:      enabled,
		QueueEnabled: queueEnabled,
		OwnerNumbers: ownerNumbers,
		Now:          time.Now,
	}
}

// Handle processa um evento de documento contra todas as regras aplicáveis
func (e *DispatchEngine) Handle(ctx context.Context, event entity.DocumentEvent) error {
	if !e.Enabled {
		return nil
	}

	rules, err := e.Matcher.Match(ctx, event)
	if err != nil {
		return fmt.Errorf("falha ao buscar regras: %w", err)
	}

	if len(rules) == 0 {
		return nil
	}

	log.Printf("📋 Evento %s em %s %s: %d regra(s) aplicável(is)",
		event.Type, event.Document.Doctype, event.Document.Name, len(rules))

	// Regras processadas em sequência, na ordem de criação
	for _, rule := range rules {
		if err := e.processRule(ctx, rule, event); err != nil {
			if err == ErrStoreUnavailable {
				return err
			}
			log.Printf("❌ Regra %s falhou em %s: %v", rule.RuleName, event.Document.Name, err)
		}
	}

	return nil
}

func (e *DispatchEngine) processRule(ctx context.Context, rule entity.NotificationRule, event entity.DocumentEvent) error {
	doc := event.Document

	renderCtx := RenderContext{
		Doc: doc.TemplateData(),
		Now: e.Now().Format(time.RFC3339),
	}

	message, err := e.Renderer.Render(rule.MessageTemplate, renderCtx)
	if err != nil {
		// Erro de template aborta só esta regra, mas deixa rastro de
		// auditoria: uma entrada Failed sem tentativa de transporte
		e.recordTemplateFailure(ctx, rule, doc, err)
		return &RenderError{Template: rule.MessageTemplate, Cause: err}
	}

	recipients, err := e.Resolver.Resolve(ctx, rule, doc)
	if err != nil {
		return fmt.Errorf("falha ao resolver destinatários: %w", err)
	}

	if len(recipients) == 0 && !rule.NotifyOwner {
		// zero destinatários = skip, não erro, nenhuma entrada criada
		log.Printf("⏭️ Regra %s: nenhum destinatário para %s", rule.RuleName, doc.Name)
		return nil
	}

	for _, recipient := range recipients {
		if err := e.createAndSubmit(ctx, rule, doc, recipient.Raw, recipient.Phone, message); err != nil {
			if err == ErrStoreUnavailable {
				return err
			}
			log.Printf("❌ Envio para %s falhou (regra %s): %v", recipient.Phone, rule.RuleName, err)
		}
	}

	if rule.NotifyOwner {
		e.notifyOwner(ctx, rule, doc, renderCtx)
	}

	return nil
}

// notifyOwner renderiza de novo com o template do dono e cria entradas
// independentes, uma por número configurado
func (e *DispatchEngine) notifyOwner(ctx context.Context, rule entity.NotificationRule, doc entity.Document, renderCtx RenderContext) {
	tmpl := rule.OwnerMessageTemplate
	if tmpl == "" {
		tmpl = rule.MessageTemplate
	}

	message, err := e.Renderer.Render(tmpl, renderCtx)
	if err != nil {
		e.recordTemplateFailure(ctx, rule, doc, err)
		return
	}

	for _, owner := range e.OwnerNumbers {
		normalized, err := e.Normalizer.Normalize(owner)
		if err != nil {
			log.Printf("⚠️ Número do dono descartado: %v", err)
			continue
		}
		if err := e.createAndSubmit(ctx, rule, doc, owner, normalized, message); err != nil {
			log.Printf("❌ Notificação do dono falhou (regra %s): %v", rule.RuleName, err)
		}
	}
}

func (e *DispatchEngine) createAndSubmit(ctx context.Context, rule entity.NotificationRule, doc entity.Document, rawPhone, phone, message string) error {
	entry := entity.NewMessageLogEntry(rawPhone, phone, message)
	entry.ReferenceDoctype = doc.Doctype
	entry.ReferenceName = doc.Name
	entry.NotificationRule = rule.ID
	entry.MediaURL = rule.MediaURL
	if rule.MediaURL != "" {
		entry.Caption = message
	}

	if rule.DelaySeconds > 0 {
		due := e.Now().Add(time.Duration(rule.DelaySeconds) * time.Second)
		entry.ScheduledTime = &due
		entry.Status = entity.StatusQueued
	} else if e.QueueEnabled {
		entry.Status = entity.StatusQueued
	}

	if err := e.Logs.Create(ctx, entry); err != nil {
		log.Printf("❌ CRITICAL: não consegui persistir log de mensagem: %v", err)
		return ErrStoreUnavailable
	}

	switch {
	case entry.ScheduledTime != nil:
		// o sweep de agendadas pega quando chegar a hora
		return nil
	case e.QueueEnabled:
		// fire-and-forget: o evento não espera rede
		if err := e.Producer.PublishDispatch(ctx, entry.ID); err != nil {
			log.Printf("⚠️ Fila indisponível, caindo para envio síncrono: %v", err)
			return e.Sender.Send(ctx, entry.ID)
		}
		return nil
	default:
		return e.Sender.Send(ctx, entry.ID)
	}
}

func (e *DispatchEngine) recordTemplateFailure(ctx context.Context, rule entity.NotificationRule, doc entity.Document, cause error) {
	entry := entity.NewMessageLogEntry("", "", "")
	entry.ReferenceDoctype = doc.Doctype
	entry.ReferenceName = doc.Name
	entry.NotificationRule = rule.ID
	entry.Status = entity.StatusFailed
	entry.ErrorMessage = fmt.Sprintf("template error: %v", cause)

	if err := e.Logs.Create(ctx, entry); err != nil {
		log.Printf("❌ Não consegui registrar falha de template: %v", err)
	}
}
