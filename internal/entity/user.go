package entity

import "encoding/base64"

// User identifies a document owner by email. The user's on-disk directory
// name is the base64 encoding of that email, shared by the watched, docs and
// thumbnails trees.
type User struct {
	Email string
}

// NewUser builds a User from a raw email claim, e.g. extracted from a
// verified bearer token (see internal/auth).
func NewUser(email string) User {
	return User{Email: email}
}

// Dir returns the base64-encoded directory name for this user.
func (u User) Dir() string {
	return base64.StdEncoding.EncodeToString([]byte(u.Email))
}

// UserFromDir decodes a user directory name back into a User. It is the
// inverse of Dir, used when a path is observed on disk and the owning user
// must be recovered from its parent directory name.
func UserFromDir(dir string) (User, error) {
	decoded, err := base64.StdEncoding.DecodeString(dir)
	if err != nil {
		return User{}, err
	}
	return User{Email: string(decoded)}, nil
}
