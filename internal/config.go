package internal

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	BufferSize      int           `env:"BUFFER_SIZE,required=true"`
	CharReplacement string        `env:"CHARACTER_REPLACEMENT,required=true"`
	LimitMessages   *int          `env:"LIMIT_MESSAGES"`
	SinkTimeout     time.Duration `env:"SINK_TIMEOUT,required=true"`
	MetricInterval  time.Duration `env:"METRIC_INTERVAL,required=true"`

	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,required=true"`
	AuthTokenKey      string        `env:"AUTH_TOKEN_KEY,required=true"`

	BadgerFilepath  string `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath   string `env:"BLUGE_FILEPATH,required=true"`
	AttachmentsDir  string `env:"ATTACHMENTS_DIR,required=true"`
	BannedWordsFile string `env:"BANNED_WORDS_FILE"`

	LogLevel       string `env:"LOG_LEVEL,required=true"`
	Host           string `env:"HOST,required=true"`
	Port           int    `env:"PORT,required=true"`
	AllowedOrigins string `env:"ALLOWED_ORIGINS,required=true"`
	DebugPort      int    `env:"DEBUG_PORT"`

	PaymentBaseURL   string        `env:"PAYMENT_BASE_URL,required=true"`
	PaymentSecretKey string        `env:"PAYMENT_SECRET_KEY,required=true"`
	PaymentTimeout   time.Duration `env:"PAYMENT_TIMEOUT,required=true"`
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}

// Origins splits the comma separated ALLOWED_ORIGINS value.
func (c Config) Origins() []string {
	parts := strings.Split(c.AllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
