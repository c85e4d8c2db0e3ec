package model

// User is a roster entry tracking whether an identity is connected
type User struct {
	Identity Identity
	Name     *string // reserved, never set by roster flows
	Online   bool
	Version  uint64 // committed writes, starting at 1
}

// Clone returns a copy that shares no pointers with u
func (u *User) Clone() *User {
	c := *u
	if u.Name != nil {
		name := *u.Name
		c.Name = &name
	}
	return &c
}
