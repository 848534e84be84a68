package server

import (
	"bufio"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/LaTsa99/LaTsaServer/pkg/crypto"
	"github.com/LaTsa99/LaTsaServer/pkg/model"
	"github.com/LaTsa99/LaTsaServer/pkg/protocol"
)

// writeTimeout bounds every socket write so a stalled client cannot block
// broadcast fan-out or a forced disconnect indefinitely.
const writeTimeout = 10 * time.Second

// Session drives the protocol state machine for exactly one connected
// client. It is the only component that talks to its socket. A session is
// created on accept and destroyed on disconnect, kick, or ban; it is never
// reused across connections.
type Session struct {
	srv  *Server
	conn net.Conn

	writeMu sync.Mutex // serializes writes to conn

	mu         sync.Mutex // guards the state below
	username   string     // set on first successful credential match
	authed     bool
	terminated bool
}

func newSession(srv *Server, conn net.Conn) *Session {
	return &Session{srv: srv, conn: conn}
}

// identity returns the bound username and whether the session is
// authenticated.
func (s *Session) identity() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username, s.authed
}

// Run speaks the protocol until the connection ends or a moderation action
// terminates the session. Each command is fully handled before the next line
// is read, so one session's commands are processed strictly in order.
func (s *Session) Run() {
	if err := s.send(protocol.Accepted); err != nil {
		s.Terminate()
		return
	}

	reader := bufio.NewReader(s.conn)
	for {
		line, err := protocol.ReadLine(reader)
		if err != nil {
			// Transport errors and remote close are implicit disconnects.
			s.Terminate()
			return
		}

		cmd := protocol.Parse(line)
		s.srv.metrics.Commands.WithLabelValues(commandLabel(cmd.Kind)).Inc()

		_, authed := s.identity()
		switch {
		case cmd.Kind == protocol.KindLogin && !authed:
			s.handleLogin(cmd.Username, cmd.Credential)
		case cmd.Kind == protocol.KindRegister:
			s.handleRegister(cmd.Username, cmd.Credential)
		case cmd.Kind == protocol.KindDisconnect:
			s.Terminate()
			return
		case cmd.Kind == protocol.KindMsg && authed:
			s.handleMessage(cmd.Body)
		case cmd.Kind == protocol.KindKick && s.isAdmin():
			s.handleKick(cmd.Target)
		case cmd.Kind == protocol.KindBan && s.isAdmin():
			s.handleBan(cmd.Target, cmd.Reason)
		default:
			_ = s.send(protocol.Error("Invalid command"))
		}

		if s.isTerminated() {
			return
		}
	}
}

// handleLogin authenticates the client against the account store. Wrong
// credentials keep the connection open for retry; a banned account gets the
// ban notice and immediate termination.
func (s *Session) handleLogin(username, credential string) {
	acct, ok := s.srv.accounts.Get(username)
	if !ok || !crypto.CheckCredential(acct.CredentialHash, credential) {
		s.srv.metrics.AuthFailures.Inc()
		_ = s.send(protocol.Error("Wrong credentials!"))
		return
	}

	// The authenticated flag is set even on the banned path so that
	// name-based lookups during teardown resolve this session.
	s.mu.Lock()
	s.username = username
	s.authed = true
	s.mu.Unlock()

	if acct.IsBanned {
		s.srv.metrics.AuthFailures.Inc()
		slog.Info("banned user refused", "user", username, "remote", s.conn.RemoteAddr())
		_ = s.send(protocol.BanLogin)
		s.Terminate()
		return
	}

	s.srv.presence.Set(username, model.Online)
	s.srv.metrics.AuthSuccesses.Inc()

	if acct.IsAdmin {
		_ = s.send(protocol.OKAdmin)
	} else {
		_ = s.send(protocol.OK)
	}

	// Presence table first, then the full history replay, in order.
	for _, a := range s.srv.accounts.All() {
		_ = s.send(protocol.FormatPresence(a.Username, s.srv.presence.Get(a.Username)))
	}
	for _, line := range s.srv.history.All() {
		s.deliver(line)
	}

	slog.Info("user logged in", "user", username, "admin", acct.IsAdmin, "remote", s.conn.RemoteAddr())
	s.srv.Announce(protocol.FormatPresence(username, model.Online), s)
	s.srv.Announce(username+" joined the server!", s)
}

// handleRegister creates a new account. The credential is hashed before the
// store lock is taken; the existence check and insert are atomic inside
// Create, so concurrent registrations of one name produce a single account.
func (s *Session) handleRegister(username, credential string) {
	if err := model.ValidateUsername(username); err != nil {
		_ = s.send(protocol.Error(err.Error()))
		return
	}
	if _, exists := s.srv.accounts.Get(username); exists {
		_ = s.send(protocol.Error("Username already exists!"))
		return
	}

	hash, err := crypto.HashCredential(credential)
	if err != nil {
		slog.Error("credential hashing failed", "err", err)
		_ = s.send(protocol.Error("Invalid command"))
		return
	}
	if err := s.srv.accounts.Create(username, hash); err != nil {
		_ = s.send(protocol.Error("Username already exists!"))
		return
	}
	s.srv.presence.Add(username)

	slog.Info("user registered", "user", username, "remote", s.conn.RemoteAddr())
	_ = s.send(protocol.OK)
	s.srv.Announce(protocol.FormatPresence(username, model.Offline), nil)
}

// handleMessage broadcasts a chat line to every authenticated session and
// records it in the history log.
func (s *Session) handleMessage(body string) {
	username, _ := s.identity()
	line := protocol.FormatChat(username, s.srv.accounts.IsAdmin(username), body)

	if s.srv.mirror.Load() {
		slog.Info("chat", "line", line)
	}
	s.srv.metrics.Messages.Inc()
	s.srv.Announce(line, nil)
}

// handleKick processes an admin client's kick request.
func (s *Session) handleKick(target string) {
	username, _ := s.identity()
	slog.Info("kick requested", "by", username, "target", target)

	acct, ok := s.srv.accounts.Get(target)
	switch {
	case !ok:
		_ = s.send(protocol.Error("No such user!"))
	case target == username:
		_ = s.send(protocol.KickSelf)
	case acct.IsAdmin:
		_ = s.send(protocol.KickAdmin)
	default:
		_ = s.send(protocol.KickDone)
		if victim := s.srv.registry.FindByUsername(target); victim != nil {
			_ = victim.send(protocol.KickNotice)
			victim.Terminate()
		}
		s.srv.metrics.Kicks.Inc()
		s.srv.Announce(target+" has been kicked from the server!", nil)
	}
}

// handleBan processes an admin client's ban request. The banned flag is set
// even when the target is offline; a connected target is notified with the
// reason and force-disconnected.
func (s *Session) handleBan(target, reason string) {
	username, _ := s.identity()
	slog.Info("ban requested", "by", username, "target", target)

	acct, ok := s.srv.accounts.Get(target)
	switch {
	case !ok:
		_ = s.send(protocol.Error("No such user!"))
	case target == username:
		_ = s.send(protocol.BanSelf)
	case acct.IsAdmin:
		_ = s.send(protocol.BanAdmin)
	default:
		if err := s.srv.accounts.Ban(target); err != nil && err != model.ErrAlreadyBanned {
			_ = s.send(protocol.Error("No such user!"))
			return
		}
		_ = s.send(protocol.BanDone)
		if victim := s.srv.registry.FindByUsername(target); victim != nil {
			_ = victim.send(protocol.BanNotice(reason))
			victim.Terminate()
		}
		s.srv.metrics.Bans.Inc()
		s.srv.Announce(target+" has been banned from the server!", nil)
	}
}

// Terminate runs the termination sequence exactly once: best-effort
// disconnect notice, socket close (which unblocks a pending read), registry
// removal, presence flip, and the departure broadcasts for sessions that
// reached authenticated.
func (s *Session) Terminate() {
	s.mu.Lock()
	if s.terminated {
		s.mu.Unlock()
		return
	}
	s.terminated = true
	username := s.username
	wasAuthed := s.authed
	s.authed = false
	s.mu.Unlock()

	_ = s.send(protocol.Disconnect)
	_ = s.conn.Close()
	s.srv.registry.Remove(s)
	s.srv.metrics.ConnectedSessions.Dec()

	if username != "" {
		s.srv.presence.Set(username, model.Offline)
	}
	if wasAuthed {
		slog.Info("user disconnected", "user", username, "remote", s.conn.RemoteAddr())
		s.srv.Announce(protocol.FormatPresence(username, model.Offline), nil)
		s.srv.Announce(username+" left the server!", nil)
	} else {
		slog.Info("connection closed", "remote", s.conn.RemoteAddr())
	}
}

// deliver sends a broadcast line to this session, rewriting the sender
// prefix to "Me" when the recipient is the sender. Only authenticated
// sessions receive broadcasts.
func (s *Session) deliver(line string) {
	username, authed := s.identity()
	if !authed {
		return
	}
	_ = s.send(protocol.RewriteOwn(line, username, s.srv.accounts.IsAdmin(username)))
}

// send writes one line to the socket under the write lock with a bounded
// deadline. Errors are left to the read loop to observe as a disconnect.
func (s *Session) send(line string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return protocol.WriteLine(s.conn, line)
}

func (s *Session) isAdmin() bool {
	username, authed := s.identity()
	return authed && s.srv.accounts.IsAdmin(username)
}

func (s *Session) isTerminated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminated
}

func commandLabel(k protocol.Kind) string {
	switch k {
	case protocol.KindLogin:
		return "login"
	case protocol.KindRegister:
		return "register"
	case protocol.KindDisconnect:
		return "disconnect"
	case protocol.KindMsg:
		return "msg"
	case protocol.KindKick:
		return "kick"
	case protocol.KindBan:
		return "ban"
	default:
		return "invalid"
	}
}
