package session

// Identity is the authenticated principal.
type Identity struct {
	ID          int64  `json:"id" validate:"gt=0"`
	DisplayName string `json:"displayName"`
	LoginEmail  string `json:"loginEmail"`
	RoleID      int64  `json:"roleId" validate:"gt=0"`
}

// Tokens holds the two bearer tokens issued at login.
type Tokens struct {
	Access  string
	Refresh string
}

// Record is everything a [Store] persists for one session.
type Record struct {
	Identity Identity
	Tokens   Tokens
}
