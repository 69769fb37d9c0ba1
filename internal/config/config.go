package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Click struct {
	ServiceID      string
	MerchantID     string
	MerchantUserID string
	Secret         string
}

type Payme struct {
	MerchantID string
	SubsAPIID  string
	SubsAPIKey string
}

type Uzcard struct {
	BaseURL  string
	Login    string
	Password string
}

type Config struct {
	BotToken string
	BotURL   string
	HTTPAddr string

	PostgresDSN   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	StateTTLHours int

	Click  Click
	Payme  Payme
	Uzcard Uzcard
}

// Load reads provider credentials from the environment. Missing payment
// secrets are a startup error: a callback endpoint without its secret would
// accept nothing but still answer, which is worse than not starting.
func Load() (*Config, error) {
	cfg := &Config{
		BotToken: strings.TrimSpace(os.Getenv("BOT_TOKEN")),
		BotURL:   getenvDefault("BOT_URL", "https://t.me/sportpay_premium_bot"),
		HTTPAddr: getenvDefault("HTTP_ADDR", ":8080"),

		PostgresDSN:   strings.TrimSpace(os.Getenv("POSTGRES_DSN")),
		RedisAddr:     getenvDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: strings.TrimSpace(os.Getenv("REDIS_PASSWORD")),
		RedisDB:       getenvInt("REDIS_DB", 0),
		StateTTLHours: getenvInt("STATE_TTL_HOURS", 24),

		Click: Click{
			ServiceID:      strings.TrimSpace(os.Getenv("CLICK_SERVICE_ID")),
			MerchantID:     strings.TrimSpace(os.Getenv("CLICK_MERCHANT_ID")),
			MerchantUserID: strings.TrimSpace(os.Getenv("CLICK_MERCHANT_USER_ID")),
			Secret:         strings.TrimSpace(os.Getenv("CLICK_SECRET")),
		},
		Payme: Payme{
			MerchantID: strings.TrimSpace(os.Getenv("PAYME_MERCHANT_ID")),
			SubsAPIID:  strings.TrimSpace(os.Getenv("PAYME_SUBS_API_ID")),
			SubsAPIKey: strings.TrimSpace(os.Getenv("PAYME_SUBS_API_KEY")),
		},
		Uzcard: Uzcard{
			BaseURL:  strings.TrimSpace(os.Getenv("UZCARD_BASE_URL")),
			Login:    strings.TrimSpace(os.Getenv("UZCARD_LOGIN")),
			Password: strings.TrimSpace(os.Getenv("UZCARD_PASSWORD")),
		},
	}

	if cfg.BotToken == "" {
		return nil, fmt.Errorf("BOT_TOKEN is not set")
	}
	if cfg.PostgresDSN == "" {
		return nil, fmt.Errorf("POSTGRES_DSN is not set")
	}
	if cfg.Click.Secret == "" {
		return nil, fmt.Errorf("CLICK_SECRET is not set")
	}
	return cfg, nil
}

func getenvDefault(name, def string) string {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	return v
}

func getenvInt(name string, def int) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
