// Package auth implements the server side of SRP-6a authentication: verifier
// and challenge storage, the setup and login handshakes, session tokens,
// the email second factor and rate limiting.
//
//go:generate go tool mockgen -destination=mock_auth.go -package=auth github.com/fzdarsky/srpgate/internal/auth MFAGate,Mailer,TokenIssuer,VerifierStore
package auth
