package guest

import (
	"regexp"

	"github.com/viral32111/LiveChat/domain/chat"
)

// Keep in sync with the client-side pattern.
var namePattern = regexp.MustCompile(`^[A-Za-z0-9_]{2,30}$`)

// ValidateName checks a desired display name.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return chat.ErrNameInvalid
	}
	return nil
}
