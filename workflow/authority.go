package workflow

import (
	"context"
	"fmt"

	"github.com/AnTengye/civicfund/client"
	"github.com/AnTengye/civicfund/model"
	"github.com/AnTengye/civicfund/pkg/logger"
)

// Placeholder credentials for authorities created on first wallet login
const (
	walletPassword   = "wallet-based"
	walletDepartment = "Municipal Review Board"
)

// msgUsernameTaken is the API detail for a duplicate username
const msgUsernameTaken = "Username already exists"

// AuthorityHandle identifies the reviewer the approval workflow runs as
type AuthorityHandle struct {
	// ID is what pending approvals are looked up by: the authority id for
	// password sessions, the wallet address for wallet sessions.
	ID        string
	Authority *model.Authority
	Wallet    string
	// Registered is true when EnsureAuthorityExists created the record.
	Registered bool
}

// RegistryAPI is the part of the API used to find or create an authority
type RegistryAPI interface {
	PendingApprovals(ctx context.Context, authorityID string) ([]model.ApprovalRequest, error)
	Register(ctx context.Context, in *model.RegisterRequest) (*model.RegisterResponse, error)
}

// EnsureAuthorityExists resolves sess to a reviewer, registering a wallet
// authority with placeholder credentials when the API does not know it yet.
// Wallets outside allow are refused before any request. Calling it again for
// the same wallet does not register twice.
func EnsureAuthorityExists(ctx context.Context, api RegistryAPI, allow *AllowList, sess *Session) (*AuthorityHandle, error) {
	if sess == nil {
		return nil, ErrNoSession
	}

	if !sess.IsWallet() {
		if sess.Authority == nil || sess.Authority.ID == "" {
			return nil, ErrNoSession
		}
		return &AuthorityHandle{ID: sess.Authority.ID, Authority: sess.Authority}, nil
	}

	wallet := sess.Wallet
	if !allow.Allows(wallet) {
		logger.Warn(ctx, "wallet not on authority allow-list", "wallet", wallet)
		return nil, ErrUnauthorizedWallet
	}

	handle := &AuthorityHandle{ID: wallet, Wallet: wallet}
	ctx = logger.WithAuthority(ctx, wallet)

	_, err := api.PendingApprovals(ctx, wallet)
	if err == nil {
		return handle, nil
	}
	if !client.IsNotFound(err) {
		return nil, &OpError{Message: MsgApprovalsFailed, Err: err}
	}

	req := WalletRegistration(wallet)
	resp, err := api.Register(ctx, req)
	if err != nil && client.Detail(err) == msgUsernameTaken && req.Username != wallet {
		// another wallet with the same prefix holds the short username
		logger.Debug(ctx, "placeholder username taken, using full address", "username", req.Username)
		req.Username = wallet
		resp, err = api.Register(ctx, req)
	}
	if err != nil {
		return nil, &OpError{Message: "Failed to register authority", Err: err}
	}

	logger.Info(ctx, "registered wallet authority", "authority_id", resp.AuthorityID)
	handle.Registered = true
	handle.Authority = &model.Authority{
		ID:            resp.AuthorityID,
		Username:      req.Username,
		Name:          req.Name,
		Department:    req.Department,
		WalletAddress: wallet,
	}
	return handle, nil
}

// WalletRegistration builds the placeholder registration for a wallet
func WalletRegistration(wallet string) *model.RegisterRequest {
	return &model.RegisterRequest{
		Username:      prefix(wallet, 10),
		Password:      walletPassword,
		Name:          fmt.Sprintf("Authority %s", prefix(wallet, 8)),
		Department:    walletDepartment,
		WalletAddress: wallet,
	}
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
