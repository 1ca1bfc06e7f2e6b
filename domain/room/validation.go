package room

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/viral32111/LiveChat/domain/chat"
)

const (
	// MaxContentLength is the longest message, in characters.
	MaxContentLength = 200

	// MaxAttachments is the most attachments a single message may carry.
	MaxAttachments = 5

	// AttachmentPathPrefix is the path every uploaded attachment is served under.
	AttachmentPathPrefix = "/attachments/"
)

var (
	roomNamePattern = regexp.MustCompile(`^[\w .,()\[\]<>+=\-!:;$£%&*#@?|]{1,50}$`)
	joinCodePattern = regexp.MustCompile(`^[A-Za-z]{6}$`)
)

// ValidateRoomName checks a room name against the allowed character set.
func ValidateRoomName(name string) error {
	if !roomNamePattern.MatchString(name) || utf8.RuneCountInString(name) > 50 {
		return chat.ErrRoomNameInvalid
	}
	return nil
}

// ValidateJoinCode checks the join code format. It never touches the store.
func ValidateJoinCode(code string) error {
	if !joinCodePattern.MatchString(code) {
		return chat.ErrJoinCodeInvalid
	}
	return nil
}

// ValidateContent checks message content length.
func ValidateContent(content string) error {
	n := utf8.RuneCountInString(content)
	if n < 1 || n > MaxContentLength {
		return chat.ErrContentInvalid
	}
	return nil
}

// ValidateAttachments checks the attachment count and that every entry has a
// type and points at an uploaded file.
func ValidateAttachments(attachments []Attachment) error {
	if len(attachments) > MaxAttachments {
		return chat.ErrAttachmentsInvalid
	}
	for _, a := range attachments {
		key, ok := strings.CutPrefix(a.Path, AttachmentPathPrefix)
		if a.Type == "" || !ok || key == "" || strings.ContainsAny(key, "/?#") {
			return chat.ErrAttachmentsInvalid
		}
	}
	return nil
}
