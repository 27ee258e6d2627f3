package domain

// AIProvider identifies an external AI vendor
type AIProvider string

const (
	AIProviderOpenAI AIProvider = "openai"
)

// EmbeddingSettings configures the embedding provider.
type EmbeddingSettings struct {
	Provider AIProvider `json:"provider"`
	APIKey   string     `json:"-"`
	Model    string     `json:"model"`
	BaseURL  string     `json:"base_url,omitempty"`
}

// IsConfigured reports whether the settings can produce a service.
func (s *EmbeddingSettings) IsConfigured() bool {
	return s != nil && s.Provider != "" && s.APIKey != ""
}

// LLMSettings configures the reranking model provider.
type LLMSettings struct {
	Provider AIProvider `json:"provider"`
	APIKey   string     `json:"-"`
	Model    string     `json:"model"`
	BaseURL  string     `json:"base_url,omitempty"`
}

// IsConfigured reports whether the settings can produce a service.
func (s *LLMSettings) IsConfigured() bool {
	return s != nil && s.Provider != "" && s.APIKey != ""
}
