package rbac

// SimpleConfig is a plain-struct Config for callers that do not carry
// their own configuration layer.
type SimpleConfig struct {
	SigningKey             string   `json:"signing_key"`
	SigningMethod          string   `json:"signing_method"`
	ContextKey             string   `json:"context_key"`
	TokenExpiration        int      `json:"token_expiration"`
	RefreshTokenExpiration int      `json:"refresh_token_expiration"`
	TokenLookup            string   `json:"token_lookup"`
	AuthScheme             string   `json:"auth_scheme"`
	Issuer                 string   `json:"issuer"`
	Audience               []string `json:"audience"`
	RolePriority           []string `json:"role_priority"`
}

// WithDefaults fills any zero field with the stock value: HS256 signing,
// bearer lookup in the Authorization header, 24h access and 720h refresh
// lifetimes, and the admin-first role priority.
func (c SimpleConfig) WithDefaults() SimpleConfig {
	if c.SigningMethod == "" {
		c.SigningMethod = "HS256"
	}
	if c.ContextKey == "" {
		c.ContextKey = "user"
	}
	if c.TokenExpiration == 0 {
		c.TokenExpiration = 24
	}
	if c.RefreshTokenExpiration == 0 {
		c.RefreshTokenExpiration = 24 * 30
	}
	if c.TokenLookup == "" {
		c.TokenLookup = "header:Authorization"
	}
	if c.AuthScheme == "" {
		c.AuthScheme = "Bearer"
	}
	if len(c.RolePriority) == 0 {
		c.RolePriority = []string{"admin", "developer", "moderator", "user"}
	}
	return c
}

func (c SimpleConfig) GetSigningKey() string          { return c.SigningKey }
func (c SimpleConfig) GetSigningMethod() string       { return c.SigningMethod }
func (c SimpleConfig) GetContextKey() string          { return c.ContextKey }
func (c SimpleConfig) GetTokenExpiration() int        { return c.TokenExpiration }
func (c SimpleConfig) GetRefreshTokenExpiration() int { return c.RefreshTokenExpiration }
func (c SimpleConfig) GetTokenLookup() string         { return c.TokenLookup }
func (c SimpleConfig) GetAuthScheme() string          { return c.AuthScheme }
func (c SimpleConfig) GetIssuer() string              { return c.Issuer }
func (c SimpleConfig) GetAudience() []string          { return c.Audience }
func (c SimpleConfig) GetRolePriority() []string      { return c.RolePriority }
