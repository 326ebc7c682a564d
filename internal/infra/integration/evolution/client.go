package evolution

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/entretech/zapnotify/internal/usecase"
)

// Client fala com a Evolution API, o gateway self-hosted de WhatsApp.
// Toda falha de rede vira TransportError; timeout é marcado para o
// chamador decidir o retry.
type Client struct {
	baseURL  string
	apiKey   string
	instance string
	http     *http.Client
}

func NewClient(baseURL, apiKey, instance string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		instance: instance,
		http:     &http.Client{Timeout: timeout},
	}
}

func (c *Client) SendText(ctx context.Context, phone, body string) (*usecase.SendResult, error) {
	payload := sendTextRequest{
		Number: phone,
		Text:   body,
	}

	var resp sendResponse
	endpoint := fmt.Sprintf("%s/message/sendText/%s", c.baseURL, c.instance)
	if err := c.post(ctx, endpoint, payload, &resp); err != nil {
		return nil, err
	}

	return &usecase.SendResult{
		ProviderMessageID: resp.Key.ID,
		ConversationID:    resp.Key.ID,
	}, nil
}

func (c *Client) SendMedia(ctx context.Context, phone, mediaURL, caption string) (*usecase.SendResult, error) {
	payload := sendMediaRequest{
		Number:    phone,
		MediaType: mediaTypeFromURL(mediaURL),
		Media:     mediaURL,
		Caption:   caption,
	}

	var resp sendResponse
	endpoint := fmt.Sprintf("%s/message/sendMedia/%s", c.baseURL, c.instance)
	if err := c.post(ctx, endpoint, payload, &resp); err != nil {
		return nil, err
	}

	return &usecase.SendResult{
		ProviderMessageID: resp.Key.ID,
		ConversationID:    resp.Key.ID,
	}, nil
}

// SendInteractive monta o corpo com as opções numeradas. A resposta volta
// como texto livre pelo webhook, correlacionada pelo key.id desta mensagem.
func (c *Client) SendInteractive(ctx context.Context, phone, body string, options []usecase.InteractiveOption) (*usecase.SendResult, error) {
	var b strings.Builder
	b.WriteString(body)
	b.WriteString("\n")
	for _, opt := range options {
		b.WriteString(fmt.Sprintf("\n*%d* - %s", opt.Number, opt.Label))
	}
	b.WriteString("\n\nResponda com o número da opção.")

	return c.SendText(ctx, phone, b.String())
}

// FetchGroupParticipants resolve os membros de um grupo no momento do
// envio. Devolve os números crus, a normalização é do chamador.
func (c *Client) FetchGroupParticipants(ctx context.Context, groupID string) ([]string, error) {
	endpoint := fmt.Sprintf("%s/group/participants/%s?groupJid=%s",
		c.baseURL, c.instance, url.QueryEscape(groupID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.transportError("fetch participants", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.statusError("fetch participants", resp)
	}

	var out groupParticipantsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &usecase.TransportError{Operation: "fetch participants", Cause: err}
	}

	numbers := make([]string, 0, len(out.Participants))
	for _, p := range out.Participants {
		// "258841234567@s.whatsapp.net" -> "258841234567"
		if n, _, found := strings.Cut(p.ID, "@"); found && n != "" {
			numbers = append(numbers, n)
		}
	}
	return numbers, nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload, out interface{}) error {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("erro ao marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return c.transportError("send", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.statusError("send", resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &usecase.TransportError{Operation: "send", Cause: err}
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.apiKey)
}

func (c *Client) transportError(op string, err error) error {
	var netErr net.Error
	timeout := errors.Is(err, context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout())
	return &usecase.TransportError{Operation: op, Cause: err, Timeout: timeout}
}

func (c *Client) statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))

	var apiErr apiError
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != nil {
		msg = fmt.Sprintf("%v", apiErr.Message)
	}

	return &usecase.TransportError{
		Operation: op,
		Cause:     fmt.Errorf("evolution api status %d: %s", resp.StatusCode, msg),
	}
}

func mediaTypeFromURL(mediaURL string) string {
	lower := strings.ToLower(mediaURL)
	switch {
	case strings.HasSuffix(lower, ".pdf"), strings.HasSuffix(lower, ".doc"),
		strings.HasSuffix(lower, ".docx"), strings.HasSuffix(lower, ".xlsx"):
		return "document"
	case strings.HasSuffix(lower, ".mp4"), strings.HasSuffix(lower, ".3gp"):
		return "video"
	case strings.HasSuffix(lower, ".mp3"), strings.HasSuffix(lower, ".ogg"):
		return "audio"
	default:
		return "image"
	}
}
