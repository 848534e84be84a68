// Package model defines the core domain types for the chat server.
package model

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

const MaxUsernameLength = 32

var ErrUsernameEmpty = errors.New("username must not be empty")
var ErrUsernameTooLong = fmt.Errorf("username must not exceed %d characters", MaxUsernameLength)
var ErrUsernameInvalidChars = errors.New("username must contain only alphanumeric characters, underscores, hyphens, or spaces")

// Sentinel errors returned by the moderation entry points. The admin console
// maps each one to a specific operator-facing message.
var (
	ErrUnknownUser   = errors.New("no such user")
	ErrUsernameTaken = errors.New("username already exists")
	ErrUserOffline   = errors.New("user is offline")
	ErrAlreadyBanned = errors.New("user is already banned")
	ErrNotBanned     = errors.New("user is not banned")
	ErrAlreadyAdmin  = errors.New("user is already admin")
	ErrNotAdmin      = errors.New("user is not an admin")
	ErrInvalidIP     = errors.New("not a valid IPv4 address")
	ErrIPListed      = errors.New("ip address already banned")
	ErrIPNotListed   = errors.New("ip address is not on blacklist")
)

// Account represents a registered user. Accounts are owned by the account
// store; sessions hold a transient reference to the account they
// authenticated as and mutate it only through the store.
type Account struct {
	Username       string `json:"username"`
	CredentialHash string `json:"credential_hash"`
	IsAdmin        bool   `json:"is_admin"`
	IsBanned       bool   `json:"is_banned"`
}

// ValidateUsername checks that a username is 1-32 characters of ASCII
// letters, digits, underscores, hyphens, or interior spaces. The wire
// protocol reserves '#', so it can never appear in a name.
func ValidateUsername(name string) error {
	if len(name) == 0 {
		return ErrUsernameEmpty
	}
	if len(name) > MaxUsernameLength {
		return ErrUsernameTooLong
	}
	if strings.HasPrefix(name, " ") || strings.HasSuffix(name, " ") {
		return ErrUsernameInvalidChars
	}
	for _, r := range name {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '_' && r != '-' && r != ' ' {
			return ErrUsernameInvalidChars
		}
	}
	return nil
}

// ValidateIPv4 checks that s is a syntactically well-formed dotted-quad IPv4
// address. IPv6 addresses are rejected: the blacklist stores IPv4 only.
func ValidateIPv4(s string) error {
	ip := net.ParseIP(s)
	if ip == nil || ip.To4() == nil || strings.Count(s, ".") != 3 {
		return ErrInvalidIP
	}
	return nil
}
