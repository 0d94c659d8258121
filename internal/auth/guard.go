package auth

import (
	"github.com/sakif/blog/internal/apperror"
	"github.com/sakif/blog/internal/model"
)

// CanModify reports whether requesterID owns resource. Anonymous requesters
// and nil resources never can; ownership is strict ID equality.
func CanModify(requesterID string, resource model.Owned) bool {
	if requesterID == "" || resource == nil {
		return false
	}
	return resource.OwnerID() == requesterID
}

// Authorize is CanModify as an error: Unauthorized for anonymous requesters,
// Forbidden for everyone who is not the owner. Services call it before any
// write.
func Authorize(requesterID string, resource model.Owned) error {
	if requesterID == "" {
		return apperror.Unauthorized("login required")
	}
	if !CanModify(requesterID, resource) {
		return apperror.Forbidden("you can only change your own content")
	}
	return nil
}
