package domain

// CredentialType names the stamper family used to authenticate a request.
type CredentialType string

const (
	CredentialAPIKey  CredentialType = "api_key"
	CredentialPasskey CredentialType = "passkey"
	CredentialWallet  CredentialType = "wallet"
)

func (c CredentialType) Valid() bool {
	switch c {
	case CredentialAPIKey, CredentialPasskey, CredentialWallet:
		return true
	default:
		return false
	}
}
