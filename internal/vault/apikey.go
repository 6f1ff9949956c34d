package vault

import (
	"strings"

	"github.com/naggery/naggery/internal/secerr"
)

// Provider names an external AI provider whose keys users may store.
type Provider string

const (
	ProviderOpenAI Provider = "OPENAI"
	ProviderClaude Provider = "CLAUDE"
)

const minAPIKeyLen = 20

// ParseProvider accepts provider names case-insensitively.
func ParseProvider(s string) (Provider, bool) {
	switch Provider(strings.ToUpper(strings.TrimSpace(s))) {
	case ProviderOpenAI:
		return ProviderOpenAI, true
	case ProviderClaude:
		return ProviderClaude, true
	}
	return "", false
}

// ValidateAPIKeyFormat checks the prefix and length conventions of a provider key.
func ValidateAPIKeyFormat(key string, provider Provider) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return secerr.Validation("apiKey", "API key cannot be empty")
	}
	switch provider {
	case ProviderOpenAI:
		if !strings.HasPrefix(key, "sk-") {
			return secerr.Validation("apiKey", `OpenAI API keys must start with "sk-"`)
		}
	case ProviderClaude:
		if !strings.HasPrefix(key, "sk-ant-") {
			return secerr.Validation("apiKey", `Claude API keys must start with "sk-ant-"`)
		}
	default:
		return secerr.Validation("provider", "unsupported API provider")
	}
	if len(key) < minAPIKeyLen {
		return secerr.Validation("apiKey", "API key appears to be too short")
	}
	return nil
}

// MaskAPIKey keeps the first and last four characters of a key.
func MaskAPIKey(key string) string {
	if len(key) < 8 {
		return "****"
	}
	stars := len(key) - 8
	if stars < 4 {
		stars = 4
	}
	return key[:4] + strings.Repeat("*", stars) + key[len(key)-4:]
}
