package model

// Authority is a reviewer empowered to approve or reject submissions
type Authority struct {
	ID            string `json:"id" yaml:"id"`
	Username      string `json:"username" yaml:"username"`
	Name          string `json:"name" yaml:"name"`
	Department    string `json:"department" yaml:"department"`
	WalletAddress string `json:"wallet_address,omitempty" yaml:"wallet_address,omitempty"`
	ReviewsCount  int    `json:"reviews_count" yaml:"reviews_count"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Success   bool       `json:"success"`
	Authority *Authority `json:"authority"`
	Token     string     `json:"token"`
	ExpiresAt string     `json:"expires_at"`
}

type RegisterRequest struct {
	Username      string `json:"username" binding:"required"`
	Password      string `json:"password" binding:"required"`
	Name          string `json:"name"`
	Department    string `json:"department"`
	WalletAddress string `json:"wallet_address,omitempty"`
}

type RegisterResponse struct {
	Success     bool   `json:"success"`
	AuthorityID string `json:"authority_id"`
}
