package protocol

// SRPAttributes are the public per-account values a client needs before it
// can derive its login sub-key and start a handshake. The verifier is never
// part of this structure.
type SRPAttributes struct {
	SRPUserID         string `json:"srpUserID"`
	SRPSalt           string `json:"srpSalt"` // Base64-encoded SRP salt
	MemLimit          uint32 `json:"memLimit"`
	OpsLimit          uint32 `json:"opsLimit"`
	KEKSalt           string `json:"kekSalt"` // Base64-encoded KDF salt
	IsEmailMFAEnabled bool   `json:"isEmailMFAEnabled"`
}

// GetSRPAttributesResponse is the response to GET /users/srp/attributes.
type GetSRPAttributesResponse struct {
	Attributes SRPAttributes `json:"attributes"`
}

// KeyParams carries the KDF parameters that accompany a new verifier.
type KeyParams struct {
	KEKSalt  string `json:"kekSalt"`
	MemLimit uint32 `json:"memLimit"`
	OpsLimit uint32 `json:"opsLimit"`
}

// SetupSRPRequest starts registration or verifier rotation.
type SetupSRPRequest struct {
	SRPUserID     string     `json:"srpUserID"`
	SRPSalt       string     `json:"srpSalt"`     // Base64-encoded salt
	SRPVerifier   string     `json:"srpVerifier"` // Base64-encoded verifier
	SRPA          string     `json:"srpA"`        // Base64-encoded client ephemeral
	KeyAttributes *KeyParams `json:"keyAttributes,omitempty"`
}

// SetupSRPResponse carries the server ephemeral for a setup handshake.
type SetupSRPResponse struct {
	SetupID string `json:"setupID"`
	SRPB    string `json:"srpB"`
}

// CompleteSRPSetupRequest proves knowledge of the new verifier's secret.
type CompleteSRPSetupRequest struct {
	SetupID string `json:"setupID"`
	SRPM1   string `json:"srpM1"`
}

// CompleteSRPSetupResponse carries the server proof once the verifier is active.
type CompleteSRPSetupResponse struct {
	SetupID string `json:"setupID"`
	SRPM2   string `json:"srpM2"`
}

// CreateSRPSessionRequest starts a login handshake.
type CreateSRPSessionRequest struct {
	SRPUserID string `json:"srpUserID"`
	SRPA      string `json:"srpA"`
}

// CreateSRPSessionResponse carries the server ephemeral for a login handshake.
type CreateSRPSessionResponse struct {
	SessionID string `json:"sessionID"`
	SRPB      string `json:"srpB"`
}

// VerifySRPSessionRequest completes a login handshake.
type VerifySRPSessionRequest struct {
	SessionID string `json:"sessionID"`
	SRPUserID string `json:"srpUserID"`
	SRPM1     string `json:"srpM1"`
}

// UserVerificationResponse is returned after a successful login proof or a
// successful second factor. Exactly one of Token and TwoFactorSessionID is set.
type UserVerificationResponse struct {
	ID                 string `json:"id"`
	Token              string `json:"token,omitempty"`
	TwoFactorSessionID string `json:"twoFactorSessionID,omitempty"`
	SRPM2              string `json:"srpM2,omitempty"`
}

// VerifyEmailMFARequest submits the emailed one-time code.
type VerifyEmailMFARequest struct {
	SessionID string `json:"sessionID"`
	Code      string `json:"code"`
}

// SetEmailMFARequest toggles email MFA for the authenticated account.
type SetEmailMFARequest struct {
	IsEnabled bool `json:"isEnabled"`
}

// HealthResponse is the response to GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}
