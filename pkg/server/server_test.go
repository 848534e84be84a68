package server

import (
	"bufio"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/LaTsa99/LaTsaServer/pkg/crypto"
	"github.com/LaTsa99/LaTsaServer/pkg/model"
)

// memStore is an in-memory datastore.Store used to run servers without a
// database file.
type memStore struct {
	mu        sync.Mutex
	accounts  []model.Account
	history   []string
	blacklist []string
}

func (m *memStore) LoadAccounts() ([]model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Account(nil), m.accounts...), nil
}

func (m *memStore) ReplaceAccounts(accounts []model.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts = append([]model.Account(nil), accounts...)
	return nil
}

func (m *memStore) LoadHistory() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.history...), nil
}

func (m *memStore) ReplaceHistory(lines []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append([]string(nil), lines...)
	return nil
}

func (m *memStore) LoadBlacklist() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.blacklist...), nil
}

func (m *memStore) ReplaceBlacklist(ips []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blacklist = append([]string(nil), ips...)
	return nil
}

func (m *memStore) Close() error { return nil }

func hashFor(t *testing.T, credential string) string {
	t.Helper()
	hash, err := crypto.HashCredential(credential)
	if err != nil {
		t.Fatalf("HashCredential: %v", err)
	}
	return hash
}

// newTestServer starts a server on a loopback port seeded with the given
// accounts and shuts it down when the test ends.
func newTestServer(t *testing.T, seed ...model.Account) (*Server, *memStore) {
	t.Helper()

	st := &memStore{accounts: seed}
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	cfg.MetricsAddr = ""

	srv := New(cfg, st)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(srv.Shutdown)
	return srv, st
}

// testClient is a scripted protocol client for end-to-end tests.
type testClient struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func dialTest(t *testing.T, srv *Server) *testClient {
	t.Helper()

	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return &testClient{t: t, conn: conn, r: bufio.NewReader(conn)}
}

func (c *testClient) send(line string) {
	c.t.Helper()
	if _, err := c.conn.Write([]byte(line + "\n")); err != nil {
		c.t.Fatalf("send %q: %v", line, err)
	}
}

func (c *testClient) readLine() string {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	line, err := c.r.ReadString('\n')
	if err != nil {
		c.t.Fatalf("readLine: %v (partial %q)", err, line)
	}
	return strings.TrimRight(line, "\r\n")
}

func (c *testClient) expect(want string) {
	c.t.Helper()
	if got := c.readLine(); got != want {
		c.t.Fatalf("read %q, want %q", got, want)
	}
}

func TestRegisterLoginMessageFlow(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)

	c := dialTest(t, srv)
	c.expect("ACCEPTED")

	c.send("register#alice#secret")
	c.expect("OK")

	c.send("login#alice#secret")
	c.expect("OK")
	c.expect("user#alice#Online")

	c.send("msg#hello")
	c.expect("Me# hello")

	c.send("disconnect")
	c.expect("disconnect")
}

func TestWrongCredentialsKeepsConnection(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, model.Account{
		Username:       "alice",
		CredentialHash: hashFor(t, "secret"),
	})

	c := dialTest(t, srv)
	c.expect("ACCEPTED")

	c.send("login#alice#wrong")
	c.expect("Error: Wrong credentials!")

	c.send("login#bob#secret")
	c.expect("Error: Wrong credentials!")

	// Still usable after failed attempts.
	c.send("login#alice#secret")
	c.expect("OK")
	c.expect("user#alice#Online")
}

func TestInvalidCommands(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)

	c := dialTest(t, srv)
	c.expect("ACCEPTED")

	c.send("bogus#stuff")
	c.expect("Error: Invalid command")

	// msg requires authentication.
	c.send("msg#hi")
	c.expect("Error: Invalid command")

	// kick requires admin rights.
	c.send("kick#alice")
	c.expect("Error: Invalid command")
}

func TestAdminBroadcastFormatting(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t,
		model.Account{Username: "Amy", CredentialHash: hashFor(t, "pw1"), IsAdmin: true},
		model.Account{Username: "Bob", CredentialHash: hashFor(t, "pw2")},
	)

	bob := dialTest(t, srv)
	bob.expect("ACCEPTED")
	bob.send("login#Bob#pw2")
	bob.expect("OK")
	bob.expect("user#Amy#Offline")
	bob.expect("user#Bob#Online")

	amy := dialTest(t, srv)
	amy.expect("ACCEPTED")
	amy.send("login#Amy#pw1")
	amy.expect("OK_ADMIN")
	amy.expect("user#Amy#Online")
	amy.expect("user#Bob#Online")

	bob.expect("user#Amy#Online")
	bob.expect("Amy joined the server!")

	amy.send("msg#Hello#World")
	amy.expect("Me(admin)# Hello World")
	bob.expect("Amy(admin)# Hello World")
}

func TestHistoryReplayOnLogin(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, model.Account{
		Username:       "alice",
		CredentialHash: hashFor(t, "secret"),
	})

	first := dialTest(t, srv)
	first.expect("ACCEPTED")
	first.send("login#alice#secret")
	first.expect("OK")
	first.expect("user#alice#Online")
	first.send("msg#one")
	first.expect("Me# one")
	first.send("msg#two")
	first.expect("Me# two")
	first.send("disconnect")
	first.expect("disconnect")

	second := dialTest(t, srv)
	second.expect("ACCEPTED")
	second.send("login#alice#secret")
	second.expect("OK")
	second.expect("user#alice#Online")
	// The transcript replays in order with own lines rewritten; join and
	// departure announcements are part of it, presence lines are not.
	second.expect("alice joined the server!")
	second.expect("Me# one")
	second.expect("Me# two")
	second.expect("alice left the server!")
}

func TestBannedLoginTerminates(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, model.Account{
		Username:       "mallory",
		CredentialHash: hashFor(t, "pw"),
		IsBanned:       true,
	})

	c := dialTest(t, srv)
	c.expect("ACCEPTED")
	c.send("login#mallory#pw")
	c.expect("ban#REKT")
	c.expect("disconnect")

	if _, err := c.r.ReadString('\n'); err == nil {
		t.Fatal("connection still open after banned login")
	}
}

func TestBlacklistedAddressRefused(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)
	if err := srv.BanIP("127.0.0.1"); err != nil {
		t.Fatalf("BanIP: %v", err)
	}

	c := dialTest(t, srv)
	c.expect("REFUSED")
	if _, err := c.r.ReadString('\n'); err == nil {
		t.Fatal("connection still open after refusal")
	}
}

func TestClientKick(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t,
		model.Account{Username: "Amy", CredentialHash: hashFor(t, "pw1"), IsAdmin: true},
		model.Account{Username: "Bob", CredentialHash: hashFor(t, "pw2")},
	)

	amy := dialTest(t, srv)
	amy.expect("ACCEPTED")
	amy.send("login#Amy#pw1")
	amy.expect("OK_ADMIN")
	amy.expect("user#Amy#Online")
	amy.expect("user#Bob#Offline")

	bob := dialTest(t, srv)
	bob.expect("ACCEPTED")
	bob.send("login#Bob#pw2")
	bob.expect("OK")
	bob.expect("user#Amy#Online")
	bob.expect("user#Bob#Online")
	amy.expect("user#Bob#Online")
	amy.expect("Bob joined the server!")

	// Self and fellow-admin targets are rejected before any state change.
	amy.send("kick#Amy")
	amy.expect("kick#YOU")
	amy.send("kick#nobody")
	amy.expect("Error: No such user!")

	amy.send("kick#Bob")
	amy.expect("kick#KICKED")
	bob.expect("kick#REKT")
	bob.expect("disconnect")

	amy.expect("user#Bob#Offline")
	amy.expect("Bob left the server!")
	amy.expect("Bob has been kicked from the server!")
}

func TestClientBanPersistsOnAccount(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t,
		model.Account{Username: "Amy", CredentialHash: hashFor(t, "pw1"), IsAdmin: true},
		model.Account{Username: "Bob", CredentialHash: hashFor(t, "pw2")},
	)

	amy := dialTest(t, srv)
	amy.expect("ACCEPTED")
	amy.send("login#Amy#pw1")
	amy.expect("OK_ADMIN")
	amy.expect("user#Amy#Online")
	amy.expect("user#Bob#Offline")

	bob := dialTest(t, srv)
	bob.expect("ACCEPTED")
	bob.send("login#Bob#pw2")
	bob.expect("OK")
	bob.expect("user#Amy#Online")
	bob.expect("user#Bob#Online")
	amy.expect("user#Bob#Online")
	amy.expect("Bob joined the server!")

	amy.send("ban#Bob#spamming")
	amy.expect("ban#BANNED")
	bob.expect("ban#spamming")
	bob.expect("disconnect")

	amy.expect("user#Bob#Offline")
	amy.expect("Bob left the server!")
	amy.expect("Bob has been banned from the server!")

	acct, ok := srv.accounts.Get("Bob")
	if !ok || !acct.IsBanned {
		t.Fatalf("account not banned after client ban: %+v", acct)
	}

	// A fresh connection with correct credentials is turned away.
	again := dialTest(t, srv)
	again.expect("ACCEPTED")
	again.send("login#Bob#pw2")
	again.expect("ban#REKT")
	again.expect("disconnect")
}

func TestConcurrentRegistrationSingleWinner(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)

	const n = 8
	replies := make(chan string, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		c := dialTest(t, srv)
		c.expect("ACCEPTED")
		wg.Add(1)
		go func(c *testClient) {
			defer wg.Done()
			c.send("register#dave#pw")
			replies <- c.readLine()
		}(c)
	}
	wg.Wait()
	close(replies)

	oks := 0
	for r := range replies {
		switch r {
		case "OK":
			oks++
		case "Error: Username already exists!":
		default:
			t.Fatalf("unexpected reply %q", r)
		}
	}
	if oks != 1 {
		t.Fatalf("got %d successful registrations, want exactly 1", oks)
	}
}

func TestShutdownPersistsState(t *testing.T) {
	t.Parallel()

	st := &memStore{}
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	cfg.MetricsAddr = ""
	srv := New(cfg, st)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	c := dialTest(t, srv)
	c.expect("ACCEPTED")
	c.send("register#alice#secret")
	c.expect("OK")
	c.send("login#alice#secret")
	c.expect("OK")
	c.expect("user#alice#Online")
	c.send("msg#remember me")
	c.expect("Me# remember me")

	if err := srv.BanIP("10.0.0.1"); err != nil {
		t.Fatalf("BanIP: %v", err)
	}

	srv.Shutdown()

	accounts, _ := st.LoadAccounts()
	if len(accounts) != 1 || accounts[0].Username != "alice" {
		t.Fatalf("persisted accounts = %+v", accounts)
	}
	history, _ := st.LoadHistory()
	want := []string{"alice joined the server!", "alice# remember me"}
	if len(history) != 2 || history[0] != want[0] || history[1] != want[1] {
		t.Fatalf("persisted history = %q, want %q", history, want)
	}
	blacklist, _ := st.LoadBlacklist()
	if len(blacklist) != 1 || blacklist[0] != "10.0.0.1" {
		t.Fatalf("persisted blacklist = %q", blacklist)
	}
}

// brokenStore fails every load; the server must still come up empty.
type brokenStore struct{ memStore }

func (b *brokenStore) LoadAccounts() ([]model.Account, error) {
	return nil, errors.New("accounts table corrupt")
}

func (b *brokenStore) LoadHistory() ([]string, error) {
	return nil, errors.New("history table corrupt")
}

func (b *brokenStore) LoadBlacklist() ([]string, error) {
	return nil, errors.New("blacklist table corrupt")
}

func TestUnreadableStateStartsEmpty(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	cfg.MetricsAddr = ""
	srv := New(cfg, &brokenStore{})
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(srv.Shutdown)

	if got := len(srv.accounts.All()); got != 0 {
		t.Fatalf("accounts = %d, want 0", got)
	}
	if got := srv.history.Len(); got != 0 {
		t.Fatalf("history length = %d, want 0", got)
	}

	// The server is fully operational on the empty state.
	c := dialTest(t, srv)
	c.expect("ACCEPTED")
	c.send("register#alice#secret")
	c.expect("OK")
}

func TestTerminateIsIdempotent(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)

	c := dialTest(t, srv)
	c.expect("ACCEPTED")

	sessions := srv.registry.Snapshot()
	if len(sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(sessions))
	}
	s := sessions[0]

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Terminate()
		}()
	}
	wg.Wait()

	if got := srv.registry.Count(); got != 0 {
		t.Fatalf("registry count after terminate = %d, want 0", got)
	}
}
