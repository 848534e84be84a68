// Package server implements the LaTsaServer chat server.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/LaTsa99/LaTsaServer/pkg/datastore"
	"github.com/LaTsa99/LaTsaServer/pkg/protocol"
)

// Server is the main chat server. It owns the listener, the in-memory state
// loaded from the datastore, and the set of live sessions. One goroutine per
// connection; shared state lives behind the individual registries' locks.
type Server struct {
	cfg   Config
	store datastore.Store

	accounts  *AccountStore
	presence  *PresenceRegistry
	history   *HistoryLog
	blacklist *Blacklist
	registry  *SessionRegistry
	metrics   *Metrics

	// announceMu serializes broadcasts so that the history append and the
	// delivery to every session happen as one unit. Two concurrent
	// broadcasts therefore reach all recipients in the same order as they
	// enter the history.
	announceMu sync.Mutex

	mirror   atomic.Bool // mirror chat lines to the server log
	listener net.Listener
	ctx      context.Context
	cancel   context.CancelFunc
}

// New creates a Server and loads persisted state from the store. A corrupt
// or unreadable collection is logged and replaced with an empty one; the
// server still starts.
func New(cfg Config, store datastore.Store) *Server {
	accounts, err := store.LoadAccounts()
	if err != nil {
		slog.Error("loading accounts failed, starting empty", "err", err)
		accounts = nil
	}
	history, err := store.LoadHistory()
	if err != nil {
		slog.Error("loading history failed, starting empty", "err", err)
		history = nil
	}
	blacklist, err := store.LoadBlacklist()
	if err != nil {
		slog.Error("loading blacklist failed, starting empty", "err", err)
		blacklist = nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:       cfg,
		store:     store,
		accounts:  NewAccountStore(accounts),
		presence:  NewPresenceRegistry(accounts),
		history:   NewHistoryLog(history),
		blacklist: NewBlacklist(blacklist),
		registry:  NewSessionRegistry(),
		metrics:   NewMetrics(),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Metrics returns the server metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Addr returns the bound listener address, valid after Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start binds the listener and begins accepting connections in the
// background. It returns once the listener is bound.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}
	s.listener = ln

	slog.Info("server listening", "addr", ln.Addr())
	s.StartMetricsHTTP()
	go s.acceptLoop()
	return nil
}

// acceptLoop accepts connections until the listener is closed. Blacklisted
// source addresses are refused before a session is created.
func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			slog.Error("accept failed", "err", err)
			continue
		}
		s.metrics.ConnectionsTotal.Inc()

		host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
		if err == nil && s.blacklist.Contains(host) {
			s.metrics.RefusedConnections.Inc()
			slog.Info("refused blacklisted address", "remote", conn.RemoteAddr())
			_ = protocol.WriteLine(conn, protocol.Refused)
			_ = conn.Close()
			continue
		}

		sess := newSession(s, conn)
		s.registry.Add(sess)
		s.metrics.ConnectedSessions.Inc()
		go sess.Run()
	}
}

// Announce relays a broadcast line to every authenticated session except
// exclude, and records it in the history unless it is a presence update.
// Presence lines change the roster display and are not part of the chat
// transcript.
func (s *Server) Announce(line string, exclude *Session) {
	s.announceMu.Lock()
	defer s.announceMu.Unlock()

	if !protocol.IsPresence(line) {
		s.history.Append(line)
	}
	for _, sess := range s.registry.Snapshot() {
		if sess == exclude {
			continue
		}
		sess.deliver(line)
	}
}

// SetMirror enables or disables mirroring of chat lines to the server log.
func (s *Server) SetMirror(on bool) {
	s.mirror.Store(on)
}

// Shutdown stops accepting connections and persists accounts, history, and
// the blacklist. Live sessions are not force-closed; their goroutines end
// when their connections do. Persistence failures are logged per collection
// so one bad write does not discard the rest.
func (s *Server) Shutdown() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}

	if err := s.store.ReplaceAccounts(s.accounts.All()); err != nil {
		slog.Error("persisting accounts failed", "err", err)
	}
	if err := s.store.ReplaceHistory(s.history.All()); err != nil {
		slog.Error("persisting history failed", "err", err)
	}
	if err := s.store.ReplaceBlacklist(s.blacklist.All()); err != nil {
		slog.Error("persisting blacklist failed", "err", err)
	}
	if err := s.store.Close(); err != nil {
		slog.Error("closing datastore failed", "err", err)
	}
	slog.Info("server stopped")
}
