package config

import (
	"fmt"
	"net/http"
	"strings"

	"manifold/internal/config"
	"manifold/internal/llm"
	"manifold/internal/llm/anthropic"
	"manifold/internal/llm/google"
	openaillm "manifold/internal/llm/openai"
)

// BuildProvider constructs an llm.Provider from a credential slot, the
// same way internal/llm/providers.Build switches on cfg.LLMClient.Provider
// -- generalized here so each of the four independent LLM slots
// (ClassifierLLM, HandlerGenLLM, StructuredLLM, MetadataLLM) can point at
// a different provider/model without sharing manifold's monolithic
// config.Config.
func BuildProvider(creds LLMCreds, httpClient *http.Client) (llm.Provider, error) {
	switch strings.ToLower(strings.TrimSpace(creds.Provider)) {
	case "", "openai", "local":
		oc := config.OpenAIConfig{APIKey: creds.APIKey, Model: creds.Model, BaseURL: creds.BaseURL}
		if strings.ToLower(creds.Provider) == "local" {
			oc.API = "completions"
		}
		return openaillm.New(oc, httpClient), nil
	case "anthropic":
		ac := config.AnthropicConfig{APIKey: creds.APIKey, Model: creds.Model, BaseURL: creds.BaseURL}
		return anthropic.New(ac, httpClient), nil
	case "google":
		gc := config.GoogleConfig{APIKey: creds.APIKey, Model: creds.Model, BaseURL: creds.BaseURL}
		return google.New(gc, httpClient)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", creds.Provider)
	}
}

// BuildProviderIfConfigured returns (nil, nil) for an empty credential slot
// so optional LLM-backed stages (adaptive handler synthesis, structured
// extraction) can be left disabled without an error.
func BuildProviderIfConfigured(creds LLMCreds, httpClient *http.Client) (llm.Provider, error) {
	if strings.TrimSpace(creds.APIKey) == "" {
		return nil, nil
	}
	return BuildProvider(creds, httpClient)
}
