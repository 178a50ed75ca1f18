package gateway

import (
	"strings"

	"github.com/promptpilot/llm-gateway/services/providers"
)

// CredentialProvider answers whether a vendor key is configured
type CredentialProvider interface {
	HasCredential(provider providers.ProviderID) bool
	GetCredential(provider providers.ProviderID) string
}

// StaticCredentials is a CredentialProvider over a fixed map, built once from config
type StaticCredentials map[providers.ProviderID]string

// HasCredential reports a non-blank key for provider
func (c StaticCredentials) HasCredential(provider providers.ProviderID) bool {
	return strings.TrimSpace(c[provider]) != ""
}

// GetCredential returns the key for provider, or ""
func (c StaticCredentials) GetCredential(provider providers.ProviderID) string {
	return strings.TrimSpace(c[provider])
}

// Configured lists providers with a key, in registry order
func (c StaticCredentials) Configured() []providers.ProviderID {
	var out []providers.ProviderID
	for _, p := range []providers.ProviderID{providers.OpenAI, providers.Anthropic, providers.Cohere} {
		if c.HasCredential(p) {
			out = append(out, p)
		}
	}
	return out
}
