package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/entretech/zapnotify/internal/entity"
)

// fakeLogRepo - repositório de log em memória com a mesma semântica CAS
// do Postgres
type fakeLogRepo struct {
	mu      sync.Mutex
	entries map[string]*entity.MessageLogEntry

	createErr error
}

func newFakeLogRepo() *fakeLogRepo {
	return &fakeLogRepo{entries: make(map[string]*entity.MessageLogEntry)}
}

func (r *fakeLogRepo) Create(ctx context.Context, e *entity.MessageLogEntry) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *e
	r.entries[e.ID] = &cp
	return nil
}

func (r *fakeLogRepo) FindByID(ctx context.Context, id string) (*entity.MessageLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("não encontrado")
	}
	cp := *e
	return &cp, nil
}

func (r *fakeLogRepo) FindByProviderMessageID(ctx context.Context, providerID string) (*entity.MessageLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.ProviderMessageID == providerID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeLogRepo) UpdateStatusIf(ctx context.Context, id string, from, to entity.MessageStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok || e.Status != from {
		return false, nil
	}
	e.Status = to
	e.UpdatedAt = time.Now()
	return true, nil
}

func (r *fakeLogRepo) MarkSent(ctx context.Context, id, providerMessageID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok || e.Status != entity.StatusSending {
		return false, nil
	}
	now := time.Now()
	e.Status = entity.StatusSent
	e.ProviderMessageID = providerMessageID
	e.ErrorMessage = ""
	e.SentAt = &now
	return true, nil
}

func (r *fakeLogRepo) MarkFailed(ctx context.Context, id, errorMessage string, incrementRetry bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok || e.Status != entity.StatusSending {
		return false, nil
	}
	e.Status = entity.StatusFailed
	e.ErrorMessage = errorMessage
	if incrementRetry {
		e.RetryCount++
	}
	return true, nil
}

func (r *fakeLogRepo) RequeueForRetry(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok || (e.Status != entity.StatusFailed && e.Status != entity.StatusCancelled) {
		return false, nil
	}
	e.Status = entity.StatusQueued
	return true, nil
}

func (r *fakeLogRepo) FindRetryable(ctx context.Context, maxRetries int, base, max time.Duration, limit int) ([]entity.MessageLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.MessageLogEntry
	for _, e := range r.entries {
		if e.Status == entity.StatusFailed && e.RetryCount < maxRetries {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (r *fakeLogRepo) FindStuckSending(ctx context.Context, olderThan time.Duration, limit int) ([]entity.MessageLogEntry, error) {
	return nil, nil
}

func (r *fakeLogRepo) FindStaleQueued(ctx context.Context, olderThan time.Duration, limit int) ([]entity.MessageLogEntry, error) {
	return nil, nil
}

func (r *fakeLogRepo) FindDueScheduled(ctx context.Context, limit int) ([]entity.MessageLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	var out []entity.MessageLogEntry
	for _, e := range r.entries {
		if e.Status == entity.StatusQueued && e.ScheduledTime != nil && !e.ScheduledTime.After(now) {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (r *fakeLogRepo) ExistsForRule(ctx context.Context, ruleID, doctype, docname string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.NotificationRule == ruleID && e.ReferenceDoctype == doctype &&
			e.ReferenceName == docname && e.Status != entity.StatusCancelled {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeLogRepo) Stats(ctx context.Context, since time.Time) (*entity.MessageStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := &entity.MessageStats{ByStatus: make(map[entity.MessageStatus]int)}
	for _, e := range r.entries {
		stats.ByStatus[e.Status]++
		stats.Total++
	}
	return stats, nil
}

func (r *fakeLogRepo) DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	return 0, nil
}

func (r *fakeLogRepo) all() []*entity.MessageLogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.MessageLogEntry
	for _, e := range r.entries {
		cp := *e
		out = append(out, &cp)
	}
	return out
}

func (r *fakeLogRepo) get(id string) *entity.MessageLogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[id]; ok {
		cp := *e
		return &cp
	}
	return nil
}

// fakeTransport - registra envios e devolve o que mandarmos
type fakeTransport struct {
	mu    sync.Mutex
	sent  []string // telefones
	texts []string

	result  *SendResult
	sendErr error

	participants []string
	groupErr     error
}

func (t *fakeTransport) SendText(ctx context.Context, phone, body string) (*SendResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sendErr != nil {
		return nil, t.sendErr
	}
	t.sent = append(t.sent, phone)
	t.texts = append(t.texts, body)
	if t.result != nil {
		return t.result, nil
	}
	return &SendResult{ProviderMessageID: "MSG-" + phone}, nil
}

func (t *fakeTransport) SendMedia(ctx context.Context, phone, mediaURL, caption string) (*SendResult, error) {
	return t.SendText(ctx, phone, caption)
}

func (t *fakeTransport) SendInteractive(ctx context.Context, phone, body string, options []InteractiveOption) (*SendResult, error) {
	return t.SendText(ctx, phone, body)
}

func (t *fakeTransport) FetchGroupParticipants(ctx context.Context, groupID string) ([]string, error) {
	if t.groupErr != nil {
		return nil, t.groupErr
	}
	return t.participants, nil
}

// fakeRenderer - substituição trivial {campo}, erro quando o template é
// "BOOM" e condição controlada por texto
type fakeRenderer struct{}

func (fakeRenderer) Render(templateText string, ctx RenderContext) (string, error) {
	if templateText == "BOOM" {
		return "", fmt.Errorf("campo inexistente")
	}
	out := templateText
	for k, v := range ctx.Doc {
		out = strings.ReplaceAll(out, "{"+k+"}", fmt.Sprintf("%v", v))
	}
	return out, nil
}

func (fakeRenderer) EvalCondition(expr string, ctx RenderContext) (bool, error) {
	switch expr {
	case "", "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, fmt.Errorf("condição inválida: %s", expr)
	}
}

// fakeProducer - registra o que foi publicado
type fakeProducer struct {
	mu         sync.Mutex
	published  []string
	publishErr error
}

func (p *fakeProducer) PublishDispatch(ctx context.Context, logID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.publishErr != nil {
		return p.publishErr
	}
	p.published = append(p.published, logID)
	return nil
}

// fakeAlerts - registra alertas de retries esgotados
type fakeAlerts struct {
	mu    sync.Mutex
	calls []string
}

func (a *fakeAlerts) SendRetryExhausted(logID, phone, errorMessage string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, logID)
	return nil
}

// fakeMutator - registra mutações de campo
type fakeMutator struct {
	mu     sync.Mutex
	calls  []string
	setErr error
}

func (m *fakeMutator) SetField(ctx context.Context, doctype, docname, field, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.calls = append(m.calls, fmt.Sprintf("%s/%s.%s=%s", doctype, docname, field, value))
	return nil
}

// fakeRuleSource - lista fixa de regras
type fakeRuleSource struct {
	rules []entity.NotificationRule
	err   error
}

func (s *fakeRuleSource) FindEnabled(ctx context.Context, documentType string, event entity.EventType) ([]entity.NotificationRule, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []entity.NotificationRule
	for _, r := range s.rules {
		if r.DocumentType == documentType && r.Event == event && r.Enabled {
			out = append(out, r)
		}
	}
	return out, nil
}

// fakeApprovalRepo - pedidos de aprovação em memória
type fakeApprovalRepo struct {
	mu       sync.Mutex
	requests map[string]*entity.ApprovalRequest
}

func newFakeApprovalRepo() *fakeApprovalRepo {
	return &fakeApprovalRepo{requests: make(map[string]*entity.ApprovalRequest)}
}

func (r *fakeApprovalRepo) Create(ctx context.Context, req *entity.ApprovalRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *req
	r.requests[req.ID] = &cp
	return nil
}

func (r *fakeApprovalRepo) FindByID(ctx context.Context, id string) (*entity.ApprovalRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok {
		return nil, fmt.Errorf("não encontrado")
	}
	cp := *req
	return &cp, nil
}

func (r *fakeApprovalRepo) FindPendingByConversation(ctx context.Context, conversationID string) (*entity.ApprovalRequest, error) {
	return r.findPending(func(req *entity.ApprovalRequest) bool {
		return req.ConversationID == conversationID
	})
}

func (r *fakeApprovalRepo) FindPendingByPhone(ctx context.Context, formattedPhone string) (*entity.ApprovalRequest, error) {
	return r.findPending(func(req *entity.ApprovalRequest) bool {
		return req.FormattedPhone == formattedPhone
	})
}

func (r *fakeApprovalRepo) FindPendingByPhoneSuffix(ctx context.Context, suffix string) (*entity.ApprovalRequest, error) {
	return r.findPending(func(req *entity.ApprovalRequest) bool {
		return strings.HasSuffix(req.FormattedPhone, suffix)
	})
}

func (r *fakeApprovalRepo) findPending(match func(*entity.ApprovalRequest) bool) (*entity.ApprovalRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, req := range r.requests {
		if req.Status == entity.ApprovalPending && match(req) {
			cp := *req
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeApprovalRepo) FindPendingForDocument(ctx context.Context, doctype, docname string) ([]entity.ApprovalRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.ApprovalRequest
	for _, req := range r.requests {
		if req.Status == entity.ApprovalPending && req.ReferenceDoctype == doctype && req.ReferenceName == docname {
			out = append(out, *req)
		}
	}
	return out, nil
}

func (r *fakeApprovalRepo) MarkResponded(ctx context.Context, id string, option int, text, from, actionExecuted string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok || req.Status != entity.ApprovalPending {
		return false, nil
	}
	now := time.Now()
	req.Status = entity.ApprovalResponded
	req.ResponseOption = option
	req.ResponseText = text
	req.ResponseFrom = from
	req.ActionExecuted = actionExecuted
	req.RespondedAt = &now
	return true, nil
}

func (r *fakeApprovalRepo) MarkCancelled(ctx context.Context, id, reason string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok || req.Status != entity.ApprovalPending {
		return false, nil
	}
	req.Status = entity.ApprovalCancelled
	req.ErrorMessage = reason
	return true, nil
}

func (r *fakeApprovalRepo) MarkExpired(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok || req.Status != entity.ApprovalPending {
		return false, nil
	}
	req.Status = entity.ApprovalExpired
	return true, nil
}

func (r *fakeApprovalRepo) ExpirePending(ctx context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, req := range r.requests {
		if req.Status == entity.ApprovalPending && now.After(req.ExpiresAt) {
			req.Status = entity.ApprovalExpired
			n++
		}
	}
	return n, nil
}

func (r *fakeApprovalRepo) SetConversationID(ctx context.Context, id, conversationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if req, ok := r.requests[id]; ok {
		req.ConversationID = conversationID
	}
	return nil
}

func (r *fakeApprovalRepo) SetActionExecuted(ctx context.Context, id, actionExecuted string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if req, ok := r.requests[id]; ok {
		req.ActionExecuted = actionExecuted
	}
	return nil
}

func (r *fakeApprovalRepo) get(id string) *entity.ApprovalRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	if req, ok := r.requests[id]; ok {
		cp := *req
		return &cp
	}
	return nil
}

// fakeTemplateRepo - templates de aprovação em memória
type fakeTemplateRepo struct {
	templates map[string]*entity.ApprovalTemplate
}

func (r *fakeTemplateRepo) Create(ctx context.Context, tpl *entity.ApprovalTemplate) error {
	r.templates[tpl.ID] = tpl
	return nil
}

func (r *fakeTemplateRepo) FindByID(ctx context.Context, id string) (*entity.ApprovalTemplate, error) {
	tpl, ok := r.templates[id]
	if !ok {
		return nil, fmt.Errorf("não encontrado")
	}
	return tpl, nil
}
