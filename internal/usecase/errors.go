package usecase

import (
	"errors"
	"fmt"
)

// RenderError: template quebrado ou campo ausente. Aborta o processamento
// daquela regra (vira entrada Failed de auditoria), nunca das irmãs.
type RenderError struct {
	Template string
	Cause    error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("erro de template: %v", e.Cause)
}

func (e *RenderError) Unwrap() error { return e.Cause }

// EvalError: condição da regra não avaliou. Exclui a regra, segue as outras.
type EvalError struct {
	Expression string
	Cause      error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("erro na condição: %v", e.Cause)
}

func (e *EvalError) Unwrap() error { return e.Cause }

// TransportError: falha de rede ou do provedor. Retryable.
// Timeout distingue bloqueio de rede de rejeição dura — textos diferentes
// no log, mesmo destino (Failed).
type TransportError struct {
	Operation string
	Timeout   bool
	Cause     error
}

func (e *TransportError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("timeout no transporte: %v", e.Cause)
	}
	return fmt.Sprintf("transporte rejeitou: %v", e.Cause)
}

func (e *TransportError) Unwrap() error { return e.Cause }

// ErrStateConflict: transição concorrente a partir de estado errado.
// No-op silencioso, nunca vira erro de usuário.
var ErrStateConflict = errors.New("transição recusada: estado mudou por baixo")

// ErrNoCorrelation: webhook sem pedido Pending correspondente.
// Logado e ignorado.
var ErrNoCorrelation = errors.New("webhook sem pedido pendente correspondente")

// ErrStoreUnavailable marca falhas de persistência — as únicas fatais
// para o evento que disparou o dispatch.
var ErrStoreUnavailable = errors.New("falha ao persistir log de mensagem")
