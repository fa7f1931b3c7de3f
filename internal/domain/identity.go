package domain

// Identity is either a guest or an authenticated user.
type Identity struct {
	userID string
}

func Guest() Identity {
	return Identity{}
}

func Authenticated(userID string) Identity {
	return Identity{userID: userID}
}

func (i Identity) IsGuest() bool {
	return i.userID == ""
}

func (i Identity) UserID() string {
	return i.userID
}

func (i Identity) Equal(other Identity) bool {
	return i.userID == other.userID
}

func (i Identity) String() string {
	if i.IsGuest() {
		return "guest"
	}
	return "user:" + i.userID
}
