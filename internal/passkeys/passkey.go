package passkeys

import "time"

// Passkey is the server-side record of a public-key credential issued
// by an external authenticator and bound to exactly one user. The
// public key is stored as provided; cryptographic validation is the
// WebAuthn collaborator's job, not this store's.
type Passkey struct {
	ID           string     `bson:"_id,omitempty" json:"id"`
	UserID       string     `bson:"userId" json:"userId"`
	CredentialID string     `bson:"credentialId" json:"credentialId"`
	PublicKey    string     `bson:"publicKey" json:"publicKey"`
	Counter      int64      `bson:"counter" json:"counter"`
	DeviceName   string     `bson:"deviceName,omitempty" json:"deviceName,omitempty"`
	CreatedAt    time.Time  `bson:"createdAt" json:"createdAt"`
	LastUsedAt   *time.Time `bson:"lastUsedAt,omitempty" json:"lastUsedAt,omitempty"`
}
