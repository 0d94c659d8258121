package model

import "time"

// DefaultProfileImage is the storage key every new profile starts with.
const DefaultProfileImage = "default.jpg"

// Profile extends a User one-to-one with a display image.
// Image is a storage key, not a URL; services resolve it through storage.Store.
type Profile struct {
	UserID    string    `json:"userId"`
	Image     string    `json:"image"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// OwnerID implements Owned.
func (p *Profile) OwnerID() string {
	if p == nil {
		return ""
	}
	return p.UserID
}
