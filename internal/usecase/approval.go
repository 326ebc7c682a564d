package usecase

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/entretech/zapnotify/internal/entity"
	"github.com/entretech/zapnotify/internal/phone"
)

// ApprovalWorkflow envia mensagens interativas e aplica a ação configurada
// quando a resposta chega pelo webhook.
type ApprovalWorkflow struct {
	Templates  entity.ApprovalTemplateRepository
	Requests   entity.ApprovalRepository
	Logs       entity.MessageLogRepository
	Renderer   Renderer
	Transport  Transport
	Normalizer PhoneNormalizer
	Mutator    DocumentMutator

	Now func() time.Time
}

func NewApprovalWorkflow(
	templates entity.ApprovalTemplateRepository,
	requests entity.ApprovalRepository,
	logs entity.MessageLogRepository,
	renderer Renderer,
	transport Transport,
	normalizer PhoneNormalizer,
	mutator DocumentMutator,
) *ApprovalWorkflow {
	return &ApprovalWorkflow{
		Templates:  templates,
		Requests:   requests,
		Logs:       logs,
		Renderer:   renderer,
		Transport:  transport,
		Normalizer: normalizer,
		Mutator:    mutator,
		Now:        time.Now,
	}
}

// SendRequest renderiza o corpo + lista de opções, cria o ApprovalRequest
// em Pending e envia pela mensagem interativa do transporte.
func (w *ApprovalWorkflow) SendRequest(ctx context.Context, templateID string, doc entity.Document, phoneOverride string) (*entity.ApprovalRequest, error) {
	tpl, err := w.Templates.FindByID(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("template de aprovação não encontrado: %w", err)
	}
	if !tpl.Enabled {
		return nil, fmt.Errorf("template de aprovação %s está desabilitado", tpl.TemplateName)
	}

	rawPhone := phoneOverride
	if rawPhone == "" {
		rawPhone = doc.GetString(tpl.PhoneField)
	}
	if rawPhone == "" {
		return nil, fmt.Errorf("não consegui determinar o telefone do aprovador")
	}

	formatted, err := w.Normalizer.Normalize(rawPhone)
	if err != nil {
		return nil, err
	}

	// Um pedido pendente por documento, salvo se o template permitir vários
	if !tpl.AllowMultiplePending {
		w.cancelPendingFor(ctx, doc.Doctype, doc.Name, "Substituído por novo pedido")
	}

	body, err := w.Renderer.Render(tpl.MessageTemplate, RenderContext{
		Doc: doc.TemplateData(),
		Now: w.Now().Format(time.RFC3339),
	})
	if err != nil {
		return nil, &RenderError{Template: tpl.MessageTemplate, Cause: err}
	}

	req := entity.NewApprovalRequest(tpl, doc.Doctype, doc.Name, rawPhone, formatted)
	if err := w.Requests.Create(ctx, req); err != nil {
		return nil, ErrStoreUnavailable
	}

	options := make([]InteractiveOption, 0, len(tpl.Options))
	for _, opt := range tpl.Options {
		options = append(options, InteractiveOption{Number: opt.Number, Label: opt.Label})
	}

	result, err := w.Transport.SendInteractive(ctx, formatted, body, options)
	if err != nil {
		w.Requests.MarkCancelled(ctx, req.ID, fmt.Sprintf("falha no envio: %v", err))
		return nil, err
	}

	if result.ConversationID != "" {
		if err := w.Requests.SetConversationID(ctx, req.ID, result.ConversationID); err != nil {
			log.Printf("⚠️ Não consegui gravar conversation id do pedido %s: %v", req.ID, err)
		}
		req.ConversationID = result.ConversationID
	}

	log.Printf("📨 Pedido de aprovação %s enviado para %s (%s %s)",
		req.ID, phone.ForDisplay(formatted), doc.Doctype, doc.Name)

	return req, nil
}

// ApprovalReply é a resposta que chega pelo webhook
type ApprovalReply struct {
	ConversationID string
	FromPhone      string
	Text           string
}

// HandleReply correlaciona a resposta a um pedido Pending e aplica a ação
// da opção escolhida. Respostas tardias ou sem correspondência são
// ignoradas com log — o provedor sempre recebe OK.
func (w *ApprovalWorkflow) HandleReply(ctx context.Context, reply ApprovalReply) error {
	req := w.correlate(ctx, reply)
	if req == nil {
		log.Printf("⚠️ Resposta sem pedido pendente (conversa %s, fone %s)", reply.ConversationID, reply.FromPhone)
		return ErrNoCorrelation
	}

	if req.Status != entity.ApprovalPending {
		// Responded é pegajoso: segunda resposta não altera nada
		log.Printf("⏭️ Pedido %s já está %s, resposta ignorada", req.ID, req.Status)
		return ErrNoCorrelation
	}

	now := w.Now()
	if req.IsExpired(now) {
		if _, err := w.Requests.MarkExpired(ctx, req.ID); err == nil {
			log.Printf("⏰ Pedido %s expirado, resposta ignorada", req.ID)
		}
		return ErrNoCorrelation
	}

	// a resposta tem que vir do telefone original (checagem de segurança)
	if !w.phoneMatches(req.FormattedPhone, reply.FromPhone) {
		log.Printf("🚫 Pedido %s: resposta de fone divergente (%s)", req.ID, reply.FromPhone)
		return ErrNoCorrelation
	}

	optionNumber := parseOptionNumber(reply.Text)
	if optionNumber == 0 {
		log.Printf("⚠️ Pedido %s: resposta %q não é uma opção válida", req.ID, reply.Text)
		return nil
	}

	option := req.OptionByNumber(optionNumber)
	if option == nil {
		log.Printf("⚠️ Pedido %s: opção %d não existe", req.ID, optionNumber)
		return nil
	}

	// O CAS em Pending vem antes da ação: de duas respostas concorrentes,
	// só a vencedora toca no ERP
	applied, err := w.Requests.MarkResponded(ctx, req.ID, optionNumber, reply.Text, reply.FromPhone, "")
	if err != nil {
		return err
	}
	if !applied {
		// outro worker processou a mesma resposta primeiro
		return ErrStateConflict
	}

	actionDesc := w.executeAction(ctx, req, option)
	if err := w.Requests.SetActionExecuted(ctx, req.ID, actionDesc); err != nil {
		log.Printf("⚠️ Pedido %s: não consegui gravar o resultado da ação: %v", req.ID, err)
	}

	log.Printf("✅ Pedido %s respondido: opção %d (%s)", req.ID, optionNumber, option.Label)
	return nil
}

// Cancel: Pending → Cancelled; qualquer outro estado é no-op com erro
func (w *ApprovalWorkflow) Cancel(ctx context.Context, requestID, reason string) error {
	applied, err := w.Requests.MarkCancelled(ctx, requestID, reason)
	if err != nil {
		return err
	}
	if !applied {
		return ErrStateConflict
	}
	return nil
}

func (w *ApprovalWorkflow) correlate(ctx context.Context, reply ApprovalReply) *entity.ApprovalRequest {
	// 1. conversation id é o caminho preferido
	if reply.ConversationID != "" {
		if req, err := w.Requests.FindPendingByConversation(ctx, reply.ConversationID); err == nil && req != nil {
			return req
		}
	}

	if reply.FromPhone == "" {
		return nil
	}

	// 2. telefone normalizado
	if formatted, err := w.Normalizer.Normalize(reply.FromPhone); err == nil {
		if req, err := w.Requests.FindPendingByPhone(ctx, formatted); err == nil && req != nil {
			return req
		}
	}

	// 3. sufixo de 9 dígitos, tolerante a variação de código de país
	suffix := phone.Suffix(reply.FromPhone, 9)
	if len(suffix) == 9 {
		if req, err := w.Requests.FindPendingByPhoneSuffix(ctx, suffix); err == nil && req != nil {
			return req
		}
	}

	return nil
}

func (w *ApprovalWorkflow) executeAction(ctx context.Context, req *entity.ApprovalRequest, option *entity.ApprovalOption) string {
	switch option.Action {
	case entity.ActionUpdateField:
		err := w.Mutator.SetField(ctx, req.ReferenceDoctype, req.ReferenceName, option.FieldName, option.FieldValue)
		if err != nil {
			// falha na mutação é reportada mas não reverte o Responded
			log.Printf("❌ Pedido %s: mutação %s=%s falhou: %v", req.ID, option.FieldName, option.FieldValue, err)
			return fmt.Sprintf("falha ao atualizar %s: %v", option.FieldName, err)
		}
		return fmt.Sprintf("campo %s atualizado para %q", option.FieldName, option.FieldValue)
	case entity.ActionAcknowledge:
		return "resposta registrada"
	default:
		return fmt.Sprintf("ação desconhecida: %s", option.Action)
	}
}

func (w *ApprovalWorkflow) cancelPendingFor(ctx context.Context, doctype, docname, reason string) {
	pending, err := w.Requests.FindPendingForDocument(ctx, doctype, docname)
	if err != nil {
		log.Printf("⚠️ Falha ao buscar pedidos pendentes de %s %s: %v", doctype, docname, err)
		return
	}
	for _, p := range pending {
		if _, err := w.Requests.MarkCancelled(ctx, p.ID, reason); err != nil {
			log.Printf("⚠️ Falha ao cancelar pedido %s: %v", p.ID, err)
		}
	}
}

func (w *ApprovalWorkflow) phoneMatches(expected, actual string) bool {
	if expected == "" || actual == "" {
		return false
	}
	if formatted, err := w.Normalizer.Normalize(actual); err == nil && formatted == expected {
		return true
	}
	// fallback: compara os últimos 9 dígitos
	return phone.Suffix(expected, 9) == phone.Suffix(actual, 9)
}

var optionNumberRe = regexp.MustCompile(`\b(\d+)\b`)

// parseOptionNumber extrai o número da opção de um texto livre
// ("1", "1 sim", "quero a 2"). Zero = não achou.
func parseOptionNumber(text string) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	if n, err := strconv.Atoi(text); err == nil {
		return n
	}
	if m := optionNumberRe.FindString(text); m != "" {
		n, _ := strconv.Atoi(m)
		return n
	}
	return 0
}
