package evolution

// Payloads da Evolution API (v2)

type sendTextRequest struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

type sendMediaRequest struct {
	Number    string `json:"number"`
	MediaType string `json:"mediatype"`
	Media     string `json:"media"` // URL pública do arquivo
	Caption   string `json:"caption,omitempty"`
}

// messageKey identifica a mensagem no WhatsApp. key.id é o que volta
// depois nos webhooks de status e de resposta.
type messageKey struct {
	RemoteJid string `json:"remoteJid"`
	FromMe    bool   `json:"fromMe"`
	ID        string `json:"id"`
}

type sendResponse struct {
	Key              messageKey `json:"key"`
	MessageTimestamp int64      `json:"messageTimestamp"`
	Status           string     `json:"status"`
}

type apiError struct {
	Status  int         `json:"status"`
	Error   string      `json:"error"`
	Message interface{} `json:"message"` // a API manda string ou lista
}

type groupParticipantsResponse struct {
	Participants []struct {
		ID    string `json:"id"` // "258841234567@s.whatsapp.net"
		Admin string `json:"admin,omitempty"`
	} `json:"participants"`
}
