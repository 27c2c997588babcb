package citation

import "errors"

var (
	ErrNotFound      = errors.New("citation not found")
	ErrParse         = errors.New("citation syntax not recognized")
	ErrQueryTooShort = errors.New("search query too short")
	ErrCommentLocked = errors.New("comment holds a back-reference")
)
