package entities

// User is a system entity: it has revisions and a PID lifecycle like any
// other entity, but no project variations.
type User struct {
	Metadata
	DisplayName string `json:"displayName,omitempty"`
	Email       string `json:"email,omitempty"`
	VREID       string `json:"vreId,omitempty"`
	Role        string `json:"role,omitempty"`
}

func (*User) Kind() Kind {
	return KindUser
}
