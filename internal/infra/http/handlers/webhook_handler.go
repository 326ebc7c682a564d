package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/entretech/zapnotify/internal/entity"
	"github.com/entretech/zapnotify/internal/infra/http/middleware"
	"github.com/entretech/zapnotify/internal/usecase"
)

// WebhookHandler recebe os eventos da Evolution API: recibos de entrega
// (messages.update) e mensagens recebidas (messages.upsert, respostas de
// aprovação). Sempre responde 200 — o provedor não tem nada a fazer com
// um erro nosso, e falha aqui não pode derrubar a fila de webhooks dele.
type WebhookHandler struct {
	Receipts  *usecase.DeliveryReceipts
	Approvals *usecase.ApprovalWorkflow
}

func NewWebhookHandler(receipts *usecase.DeliveryReceipts, approvals *usecase.ApprovalWorkflow) *WebhookHandler {
	return &WebhookHandler{
		Receipts:  receipts,
		Approvals: approvals,
	}
}

type webhookEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type messageKey struct {
	RemoteJid string `json:"remoteJid"`
	FromMe    bool   `json:"fromMe"`
	ID        string `json:"id"`
}

type upsertData struct {
	Key     messageKey `json:"key"`
	Message struct {
		Conversation        string `json:"conversation"`
		ExtendedTextMessage struct {
			Text        string `json:"text"`
			ContextInfo struct {
				StanzaID string `json:"stanzaId"`
			} `json:"contextInfo"`
		} `json:"extendedTextMessage"`
		ButtonsResponseMessage struct {
			SelectedButtonID    string `json:"selectedButtonId"`
			SelectedDisplayText string `json:"selectedDisplayText"`
		} `json:"buttonsResponseMessage"`
		ListResponseMessage struct {
			Title             string `json:"title"`
			SingleSelectReply struct {
				SelectedRowID string `json:"selectedRowId"`
			} `json:"singleSelectReply"`
		} `json:"listResponseMessage"`
	} `json:"message"`
}

type updateData struct {
	KeyID  string     `json:"keyId"`
	Key    messageKey `json:"key"`
	Status string     `json:"status"`
}

func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var envelope webhookEnvelope
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
		// payload ilegível: loga e devolve OK mesmo assim
		log.Printf("⚠️ Webhook com JSON inválido: %v", err)
		w.WriteHeader(http.StatusOK)
		return
	}

	middleware.RecordWebhookEvent(envelope.Event)

	switch envelope.Event {
	case "messages.update":
		h.handleReceipt(r, envelope.Data)
	case "messages.upsert":
		h.handleIncoming(r, envelope.Data)
	default:
		// eventos que não interessam (presence, connection, etc)
	}

	w.WriteHeader(http.StatusOK)
}

func (h *WebhookHandler) handleReceipt(r *http.Request, raw json.RawMessage) {
	var data updateData
	if err := json.Unmarshal(raw, &data); err != nil {
		log.Printf("⚠️ Recibo com payload inválido: %v", err)
		return
	}

	providerID := data.KeyID
	if providerID == "" {
		providerID = data.Key.ID
	}
	if providerID == "" {
		return
	}

	var status entity.MessageStatus
	switch data.Status {
	case "DELIVERY_ACK":
		status = entity.StatusDelivered
	case "READ":
		status = entity.StatusRead
	default:
		// SERVER_ACK e afins não mudam nada aqui
		return
	}

	if err := h.Receipts.Apply(r.Context(), providerID, status); err != nil {
		log.Printf("⚠️ Recibo %s para %s não aplicado: %v", data.Status, providerID, err)
	}
}

func (h *WebhookHandler) handleIncoming(r *http.Request, raw json.RawMessage) {
	var data upsertData
	if err := json.Unmarshal(raw, &data); err != nil {
		log.Printf("⚠️ Mensagem recebida com payload inválido: %v", err)
		return
	}

	// eco das nossas próprias mensagens
	if data.Key.FromMe {
		return
	}

	text := extractText(data)
	if text == "" {
		return
	}

	reply := usecase.ApprovalReply{
		ConversationID: data.Message.ExtendedTextMessage.ContextInfo.StanzaID,
		FromPhone:      phoneFromJid(data.Key.RemoteJid),
		Text:           text,
	}

	err := h.Approvals.HandleReply(r.Context(), reply)
	switch err {
	case nil:
		middleware.RecordApprovalResponse()
	case usecase.ErrNoCorrelation:
		// mensagem qualquer, não é resposta de aprovação
	default:
		log.Printf("⚠️ Resposta de aprovação não processada: %v", err)
	}
}

func extractText(data upsertData) string {
	m := data.Message
	switch {
	case m.Conversation != "":
		return m.Conversation
	case m.ExtendedTextMessage.Text != "":
		return m.ExtendedTextMessage.Text
	case m.ButtonsResponseMessage.SelectedDisplayText != "":
		return m.ButtonsResponseMessage.SelectedDisplayText
	case m.ButtonsResponseMessage.SelectedButtonID != "":
		return m.ButtonsResponseMessage.SelectedButtonID
	case m.ListResponseMessage.SingleSelectReply.SelectedRowID != "":
		return m.ListResponseMessage.SingleSelectReply.SelectedRowID
	case m.ListResponseMessage.Title != "":
		return m.ListResponseMessage.Title
	}
	return ""
}

// phoneFromJid: "258841234567@s.whatsapp.net" -> "258841234567"
func phoneFromJid(jid string) string {
	if n, _, found := strings.Cut(jid, "@"); found {
		return n
	}
	return jid
}
