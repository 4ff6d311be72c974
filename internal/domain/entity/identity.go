package entity

// Identity is the authenticated user, or the zero value for a guest.
type Identity struct {
	UserID string `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
}

func Guest() Identity {
	return Identity{}
}

func (i Identity) IsAuthenticated() bool {
	return i.UserID != ""
}
