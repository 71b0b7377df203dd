package models

// Session is a point-in-time copy of the client's authentication state.
type Session struct {
	AccessToken  string // empty when absent
	RefreshToken string // empty when absent
	User         *User  // nil until the profile has been fetched
	Loading      bool   // an auth operation is in flight
}

// IsAuthenticated is true only when both an access token and a user are held.
func (s Session) IsAuthenticated() bool {
	return s.AccessToken != "" && s.User != nil
}

// IsSuperuser is false whenever no user is held.
func (s Session) IsSuperuser() bool {
	return s.User != nil && s.User.IsSuperuser
}

// Provisional reports the window between a persisted token being loaded and
// the profile fetch that confirms it.
func (s Session) Provisional() bool {
	return s.AccessToken != "" && s.User == nil
}

// IsCleared reports whether nothing of the session remains.
func (s Session) IsCleared() bool {
	return s.AccessToken == "" && s.RefreshToken == "" && s.User == nil
}
