package usecase

import (
	"context"
)

// Renderer é o adapter fino sobre o motor de templates. O core só conhece
// esta interface.
type Renderer interface {
	Render(templateText string, ctx RenderContext) (string, error)
	EvalCondition(expr string, ctx RenderContext) (bool, error)
}

// RenderContext é o contexto imutável entregue aos templates e condições
type RenderContext struct {
	Doc map[string]interface{} // atributos do documento
	Now string                 // timestamp corrente, formatado
}

// SendResult é o que o provedor devolve num envio bem-sucedido
type SendResult struct {
	ProviderMessageID string
	ConversationID    string
}

// InteractiveOption é uma opção numerada de mensagem interativa
type InteractiveOption struct {
	Number int
	Label  string
}

// Transport é a saída para o provedor de WhatsApp (Evolution API).
// A única operação que bloqueia em rede.
type Transport interface {
	SendText(ctx context.Context, phone, body string) (*SendResult, error)
	SendMedia(ctx context.Context, phone, mediaURL, caption string) (*SendResult, error)
	SendInteractive(ctx context.Context, phone, body string, options []InteractiveOption) (*SendResult, error)
	FetchGroupParticipants(ctx context.Context, groupID string) ([]string, error)
}

// PhoneNormalizer canonicaliza números crus
type PhoneNormalizer interface {
	Normalize(raw string) (string, error)
}

// QueueProducer entrega o envio para processamento assíncrono.
// Fire-and-forget: o evento que disparou não espera rede.
type QueueProducer interface {
	PublishDispatch(ctx context.Context, logID string) error
}

// DocumentMutator aplica a mutação de campo configurada numa opção de
// aprovação. Colaborador externo — o core não modela documentos do ERP.
type DocumentMutator interface {
	SetField(ctx context.Context, doctype, docname, field, value string) error
}

// AlertService avisa o operador quando uma mensagem esgota os retries
type AlertService interface {
	SendRetryExhausted(logID, phone, errorMessage string) error
}
