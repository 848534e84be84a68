package server

import (
	"log/slog"

	"github.com/LaTsa99/LaTsaServer/pkg/model"
	"github.com/LaTsa99/LaTsaServer/pkg/protocol"
)

// Moderation entry points invoked from the admin console. Each validates the
// target's existence and current state and returns a sentinel error from
// pkg/model; the console renders those as operator-facing messages.

// UserStatus is one row of the console user listing.
type UserStatus struct {
	Username string
	Status   model.Presence
	IsAdmin  bool
	IsBanned bool
}

// Users lists every registered account with its live presence.
func (s *Server) Users() []UserStatus {
	accounts := s.accounts.All()
	result := make([]UserStatus, 0, len(accounts))
	for _, a := range accounts {
		result = append(result, UserStatus{
			Username: a.Username,
			Status:   s.presence.Get(a.Username),
			IsAdmin:  a.IsAdmin,
			IsBanned: a.IsBanned,
		})
	}
	return result
}

// Accounts returns a snapshot of every registered account.
func (s *Server) Accounts() []model.Account {
	return s.accounts.All()
}

// ClearHistory discards the chat transcript.
func (s *Server) ClearHistory() {
	s.history.Clear()
	slog.Info("history cleared")
}

// Kick force-disconnects a connected user. Unlike a ban it leaves the
// account untouched, so the target is an error when offline.
func (s *Server) Kick(username string) error {
	if _, ok := s.accounts.Get(username); !ok {
		return model.ErrUnknownUser
	}
	victim := s.registry.FindByUsername(username)
	if victim == nil {
		return model.ErrUserOffline
	}

	_ = victim.send(protocol.KickNotice)
	victim.Terminate()
	s.metrics.Kicks.Inc()
	slog.Info("user kicked by console", "user", username)
	s.Announce(username+" has been kicked from the server by server admin!", nil)
	return nil
}

// Ban marks an account banned and force-disconnects it if connected. A ban
// sticks to the account, so an offline target is fine.
func (s *Server) Ban(username, reason string) error {
	if err := s.accounts.Ban(username); err != nil {
		return err
	}
	if victim := s.registry.FindByUsername(username); victim != nil {
		_ = victim.send(protocol.BanNotice(reason))
		victim.Terminate()
	}
	s.metrics.Bans.Inc()
	slog.Info("user banned by console", "user", username, "reason", reason)
	s.Announce(username+" has been banned from the server by server admin!", nil)
	return nil
}

// Unban clears an account's banned flag.
func (s *Server) Unban(username string) error {
	if err := s.accounts.Unban(username); err != nil {
		return err
	}
	slog.Info("user unbanned", "user", username)
	return nil
}

// BanIP adds an address to the admission blacklist. Connections already
// established from that address are unaffected.
func (s *Server) BanIP(ip string) error {
	if err := s.blacklist.Add(ip); err != nil {
		return err
	}
	slog.Info("ip blacklisted", "ip", ip)
	return nil
}

// UnbanIP removes an address from the admission blacklist.
func (s *Server) UnbanIP(ip string) error {
	if err := s.blacklist.Remove(ip); err != nil {
		return err
	}
	slog.Info("ip removed from blacklist", "ip", ip)
	return nil
}

// DeleteUser removes an account and its presence entry, disconnecting the
// user first if connected.
func (s *Server) DeleteUser(username string) error {
	if _, ok := s.accounts.Get(username); !ok {
		return model.ErrUnknownUser
	}
	if victim := s.registry.FindByUsername(username); victim != nil {
		_ = victim.send(protocol.KickNotice)
		victim.Terminate()
	}
	if err := s.accounts.Delete(username); err != nil {
		return err
	}
	s.presence.Remove(username)
	slog.Info("user deleted", "user", username)
	return nil
}

// SetAdmin grants or revokes a user's admin rights. Takes effect on the next
// command of a live session.
func (s *Server) SetAdmin(username string, admin bool) error {
	if err := s.accounts.SetAdmin(username, admin); err != nil {
		return err
	}
	slog.Info("admin rights changed", "user", username, "admin", admin)
	return nil
}
