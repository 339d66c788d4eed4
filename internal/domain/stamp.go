package domain

// Scheme is the wire name of a signature scheme understood by the custody service.
type Scheme string

const (
	SchemeAPIP256         Scheme = "SIGNATURE_SCHEME_TK_API_P256"
	SchemeAPIEd25519      Scheme = "SIGNATURE_SCHEME_TK_API_ED25519"
	SchemeSecp256k1EIP191 Scheme = "SIGNATURE_SCHEME_TK_API_SECP256K1_EIP191"
	SchemeWebAuthn        Scheme = "SIGNATURE_SCHEME_TK_WEBAUTHN"
)

const (
	StampHeaderName         = "X-Stamp"
	WebAuthnStampHeaderName = "X-Stamp-WebAuthn"
)

// Stamp is the header attached to a request to prove possession of a credential.
type Stamp struct {
	HeaderName  string
	HeaderValue string
	Scheme      Scheme
	PublicKey   string
}

// StampPayload is the JSON document carried, base64url encoded, in the X-Stamp header.
type StampPayload struct {
	PublicKey string `json:"publicKey"`
	Scheme    Scheme `json:"scheme"`
	Signature string `json:"signature"`
}
