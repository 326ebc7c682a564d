package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Settings concentra a configuração do serviço. Os defaults seguem a
// operação em Moçambique (código 258, números locais de 9 dígitos).
type Settings struct {
	Enabled bool

	// Evolution API
	APIURL       string
	APIKey       string
	InstanceName string
	HTTPTimeout  time.Duration

	// Normalização de telefone
	DefaultCountryCode string
	LocalNumberLength  int
	LocalPrefixes      []string

	// Números do dono (um por linha no .env, separados por vírgula aqui)
	OwnerNumbers []string

	// Fila e retry
	QueueEnabled      bool
	MaxRetries        int
	RetryBaseInterval time.Duration
	RetryMaxInterval  time.Duration
	SendingTimeout    time.Duration // quanto tempo em Sending até considerar travado

	// Rate limiting do sweep de pendentes
	RateLimitEnabled  bool
	MessagesPerMinute int

	LogRetentionDays int

	// Alerta por email quando uma mensagem esgota os retries
	AlertMailTo string
}

// Load monta Settings a partir do ambiente (godotenv já carregado no main)
func Load() *Settings {
	return &Settings{
		Enabled: envBool("WHATSAPP_ENABLED", true),

		APIURL:       strings.TrimRight(os.Getenv("EVOLUTION_API_URL"), "/"),
		APIKey:       os.Getenv("EVOLUTION_API_KEY"),
		InstanceName: os.Getenv("EVOLUTION_INSTANCE"),
		HTTPTimeout:  envDuration("EVOLUTION_TIMEOUT", 30*time.Second),

		DefaultCountryCode: envString("DEFAULT_COUNTRY_CODE", "258"),
		LocalNumberLength:  envInt("LOCAL_NUMBER_LENGTH", 9),
		LocalPrefixes:      envList("LOCAL_NUMBER_PREFIXES", []string{"82", "83", "84", "85", "86", "87"}),

		OwnerNumbers: envList("OWNER_NUMBERS", nil),

		QueueEnabled:      envBool("QUEUE_ENABLED", true),
		MaxRetries:        envInt("MAX_RETRIES", 3),
		RetryBaseInterval: envDuration("RETRY_BASE_INTERVAL", 5*time.Minute),
		RetryMaxInterval:  envDuration("RETRY_MAX_INTERVAL", 1*time.Hour),
		SendingTimeout:    envDuration("SENDING_TIMEOUT", 10*time.Minute),

		RateLimitEnabled:  envBool("ENABLE_RATE_LIMITING", false),
		MessagesPerMinute: envInt("MESSAGES_PER_MINUTE", 20),

		LogRetentionDays: envInt("LOG_RETENTION_DAYS", 30),

		AlertMailTo: os.Getenv("ALERT_MAIL_TO"),
	}
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
