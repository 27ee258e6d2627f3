package driven

// TokenClaims carries the identity baked into an API token.
type TokenClaims struct {
	Subject   string `json:"subject"`
	ProjectID string `json:"project_id,omitempty"`
	IssuedAt  int64  `json:"issued_at"`
	ExpiresAt int64  `json:"expires_at"`
}

// AuthAdapter handles API token cryptographic operations.
type AuthAdapter interface {
	GenerateToken(claims *TokenClaims) (string, error)
	ParseToken(token string) (*TokenClaims, error)
}
