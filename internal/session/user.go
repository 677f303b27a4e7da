package session

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/machinepulse/machinepulse/internal/backend"
)

const (
	RoleViewer   = "viewer"
	RoleEngineer = "engineer"
	RoleAdmin    = "admin"
)

// User is the confirmed identity behind a session. It is derived from the
// backend profile and discarded whenever the session is invalidated; the
// backend stays authoritative.
type User struct {
	ID        string
	Email     string
	Name      string
	AvatarURL string
	Role      string // "viewer", "engineer", "admin", or "" for unassigned
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UserFromProfile builds a User from the backend profile. The display name
// falls back to the email, and a missing avatar is synthesized
// deterministically from the normalized email.
func UserFromProfile(p backend.Profile) User {
	name := strings.TrimSpace(p.FullName)
	if name == "" {
		name = strings.TrimSpace(p.Email)
	}

	role := ""
	if p.Role != nil {
		role = strings.TrimSpace(*p.Role)
	}

	avatar := strings.TrimSpace(p.AvatarURL)
	if avatar == "" {
		avatar = avatarURL(p.Email)
	}

	return User{
		ID:        p.ID,
		Email:     p.Email,
		Name:      name,
		AvatarURL: avatar,
		Role:      role,
	}
}

func avatarURL(email string) string {
	sum := sha256.Sum256([]byte(NormalizeEmail(email)))
	return fmt.Sprintf("https://www.gravatar.com/avatar/%s?d=identicon", hex.EncodeToString(sum[:]))
}
