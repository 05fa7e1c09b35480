package stdio

import (
	"os/user"
)

// UserProvider names the local peer. The stdio transport performs no
// authentication; the ID only tags log records.
type UserProvider interface {
	CurrentUserID() (string, error)
}

// OSUserProvider resolves the ID from the operating system's current user,
// preferring the username over the numeric uid.
type OSUserProvider struct{}

func (OSUserProvider) CurrentUserID() (string, error) {
	u, err := user.Current()
	if err != nil {
		return "", err
	}
	if u.Username != "" {
		return u.Username, nil
	}
	return u.Uid, nil
}

// StaticUserProvider always reports the same ID.
type StaticUserProvider string

func (s StaticUserProvider) CurrentUserID() (string, error) { return string(s), nil }
