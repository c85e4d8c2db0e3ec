package model

import "time"

// Identity is an opaque caller token issued by the identity service
type Identity string

// Credential is the identity service's record of an issued identity.
// The secret half of the client token is only ever stored hashed.
type Credential struct {
	Identity   Identity
	SecretHash string // bcrypt hash
	CreatedAt  time.Time
}
