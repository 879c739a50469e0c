package model

// AuthSnapshot is an immutable view of the authentication state published to
// observers. Invariant: Authenticated implies Claims and Token are present
// and the claims were non-expired when the snapshot was taken.
type AuthSnapshot struct {
	Claims        *IdentityClaims
	Token         *SessionToken
	Authenticated bool
	Loading       bool
	AuthError     string
	VoiceStatus   string
	VoiceError    string
	HasVoiceSet   bool
	SignedURL     string
}
