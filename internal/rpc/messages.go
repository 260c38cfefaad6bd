package rpc

// Timestamps travel as RFC 3339 strings with nanoseconds, items as JSON
// objects holding the record fields.

type RegisterRequest struct {
	Username string `json:"username"`
	Salt     []byte `json:"salt"`
	Verifier []byte `json:"verifier"`
}

type RegisterResponse struct {
	UserID string `json:"userId"`
}

type GetSaltRequest struct {
	Username string `json:"username"`
}

type GetSaltResponse struct {
	Salt []byte `json:"salt"`
}

type LoginRequest struct {
	Username          string `json:"username"`
	VerifierCandidate []byte `json:"verifierCandidate"`
}

type LoginResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	// AccountID scopes every item the user owns.
	AccountID string `json:"accountId"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type RefreshTokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type PingRequest struct{}

type PingResponse struct {
	Status string `json:"status"`
}

type ListRequest struct {
	Model         string `json:"model"`
	AccountID     string `json:"accountId,omitempty"`
	UpdatedAfter  string `json:"updatedAfter,omitempty"`
	Limit         int    `json:"limit,omitempty"`
	NextToken     string `json:"nextToken,omitempty"`
	SortDirection string `json:"sortDirection,omitempty"`
}

type ListResponse struct {
	Items     []map[string]any `json:"items"`
	NextToken string           `json:"nextToken,omitempty"`
}

// MutateRequest carries a create or an update.
type MutateRequest struct {
	Model string         `json:"model"`
	Item  map[string]any `json:"item"`
}

type MutateResponse struct {
	Item map[string]any `json:"item"`
}

type SubscribeRequest struct {
	Model string `json:"model"`
	Event string `json:"event"`
}

type ItemEvent struct {
	Event string         `json:"event"`
	Item  map[string]any `json:"item"`
}
