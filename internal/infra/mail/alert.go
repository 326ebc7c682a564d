package mail

import (
	"fmt"
	"log"
	"strings"

	"gopkg.in/gomail.v2"
)

type AlertSender struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	To       []string
}

func NewAlertSender(host string, port int, user, password, from string, to []string) *AlertSender {
	return &AlertSender{
		Host:     host,
		Port:     port,
		User:     user,
		Password: password,
		From:     from,
		To:       to,
	}
}

// SendRetryExhausted avisa o operador que uma mensagem esgotou as
// tentativas e precisa de intervenção manual
func (s *AlertSender) SendRetryExhausted(logID, phone, errorMessage string) error {
	if s.Host == "" || len(s.To) == 0 {
		log.Println("⚠️ Alerta por email não configurado, pulando")
		return nil
	}

	body := fmt.Sprintf(
		"Uma mensagem de WhatsApp esgotou as tentativas de envio.\n\n"+
			"Entrada do log: %s\n"+
			"Telefone: %s\n"+
			"Último erro: %s\n\n"+
			"Use o retry manual no painel para tentar de novo.",
		logID, phone, errorMessage,
	)

	m := gomail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", s.To...)
	m.SetHeader("Subject", fmt.Sprintf("🚨 Envio de WhatsApp falhou em definitivo (%s)", phone))
	m.SetBody("text/plain", body)

	d := gomail.NewDialer(s.Host, s.Port, s.User, s.Password)

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("erro ao enviar email SMTP: %w", err)
	}

	log.Printf("📧 Alerta de retries esgotados enviado para %s", strings.Join(s.To, ", "))
	return nil
}
