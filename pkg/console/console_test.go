package console

import (
	"strings"
	"testing"

	"github.com/LaTsa99/LaTsaServer/pkg/model"
	"github.com/LaTsa99/LaTsaServer/pkg/server"
)

// fakeController records calls and returns scripted errors.
type fakeController struct {
	users    []server.UserStatus
	accounts []model.Account
	err      error

	cleared    bool
	mirror     bool
	lastTarget string
	lastReason string
	lastAdmin  bool
}

func (f *fakeController) Users() []server.UserStatus  { return f.users }
func (f *fakeController) Accounts() []model.Account   { return f.accounts }
func (f *fakeController) ClearHistory()               { f.cleared = true }
func (f *fakeController) SetMirror(on bool)           { f.mirror = on }
func (f *fakeController) Kick(username string) error  { f.lastTarget = username; return f.err }
func (f *fakeController) Unban(username string) error { f.lastTarget = username; return f.err }
func (f *fakeController) BanIP(ip string) error       { f.lastTarget = ip; return f.err }
func (f *fakeController) UnbanIP(ip string) error     { f.lastTarget = ip; return f.err }

func (f *fakeController) Ban(username, reason string) error {
	f.lastTarget = username
	f.lastReason = reason
	return f.err
}

func (f *fakeController) DeleteUser(username string) error {
	f.lastTarget = username
	return f.err
}

func (f *fakeController) SetAdmin(username string, admin bool) error {
	f.lastTarget = username
	f.lastAdmin = admin
	return f.err
}

func TestDispatchOutcomes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		line string
		err  error
		want string
	}{
		{name: "unknown command", line: "frobnicate", want: "Error: Not a valid command!"},
		{name: "wrong arity", line: "kick_user", want: "Error: Not a valid command!"},
		{name: "empty line", line: "", want: ""},

		{name: "kick ok", line: "kick_user bob", want: "bob has been kicked."},
		{name: "kick unknown", line: "kick_user bob", err: model.ErrUnknownUser, want: "Error: No such user!"},
		{name: "kick offline", line: "kick_user bob", err: model.ErrUserOffline, want: "Error: selected user is offline!"},

		{name: "ban ok", line: "ban_user bob being rude", want: "bob banned successfully!"},
		{name: "ban banned", line: "ban_user bob rude", err: model.ErrAlreadyBanned, want: "Error: User is already banned!"},
		{name: "ban needs reason", line: "ban_user bob", want: "Error: Not a valid command!"},

		{name: "unban ok", line: "remove_ban bob", want: "Ban removed from user."},
		{name: "unban not banned", line: "remove_ban bob", err: model.ErrNotBanned, want: "Error: User is not banned."},

		{name: "ban ip ok", line: "ban_ip 10.0.0.1", want: "IP address added to blacklist!"},
		{name: "ban ip invalid", line: "ban_ip nonsense", err: model.ErrInvalidIP, want: "Error: This is not an IP address!"},
		{name: "ban ip listed", line: "ban_ip 10.0.0.1", err: model.ErrIPListed, want: "Error: IP address already banned."},
		{name: "unban ip ok", line: "unban_ip 10.0.0.1", want: "IP removed from blacklist!"},
		{name: "unban ip absent", line: "unban_ip 10.0.0.1", err: model.ErrIPNotListed, want: "Error: IP address is not on blacklist!"},

		{name: "delete ok", line: "delete_user bob", want: "bob removed from users!"},
		{name: "delete unknown", line: "delete_user bob", err: model.ErrUnknownUser, want: "Error: User doesn't exist!"},

		{name: "promote ok", line: "add_admin bob", want: "bob is now an admin!"},
		{name: "promote admin", line: "add_admin bob", err: model.ErrAlreadyAdmin, want: "Error: User is already admin!"},
		{name: "demote ok", line: "remove_admin bob", want: "bob is now not an admin!"},
		{name: "demote non-admin", line: "remove_admin bob", err: model.ErrNotAdmin, want: "Error: user is not an admin!"},

		{name: "delete history", line: "delete_history", want: "History deleted successfully!"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			d := NewDispatcher(&fakeController{err: tc.err})
			if got := d.Dispatch(tc.line); got != tc.want {
				t.Fatalf("Dispatch(%q) = %q, want %q", tc.line, got, tc.want)
			}
		})
	}
}

func TestDispatchUnderscoreNames(t *testing.T) {
	t.Parallel()

	ctl := &fakeController{}
	d := NewDispatcher(ctl)
	if got := d.Dispatch("kick_user John_Doe"); got != "John Doe has been kicked." {
		t.Fatalf("Dispatch = %q", got)
	}
	if ctl.lastTarget != "John Doe" {
		t.Fatalf("target = %q, want %q", ctl.lastTarget, "John Doe")
	}
}

func TestDispatchBanReasonJoined(t *testing.T) {
	t.Parallel()

	ctl := &fakeController{}
	d := NewDispatcher(ctl)
	d.Dispatch("ban_user bob repeated flooding of chat")
	if ctl.lastReason != "repeated flooding of chat" {
		t.Fatalf("reason = %q", ctl.lastReason)
	}
}

func TestDispatchMirrorToggle(t *testing.T) {
	t.Parallel()

	ctl := &fakeController{}
	d := NewDispatcher(ctl)
	d.Dispatch("show_msg")
	if !ctl.mirror {
		t.Fatal("show_msg did not enable mirroring")
	}
	d.Dispatch("hide_msg")
	if ctl.mirror {
		t.Fatal("hide_msg did not disable mirroring")
	}
}

func TestDispatchShowUsers(t *testing.T) {
	t.Parallel()

	ctl := &fakeController{users: []server.UserStatus{
		{Username: "Amy", Status: model.Online, IsAdmin: true},
		{Username: "Bob", Status: model.Offline},
	}}
	d := NewDispatcher(ctl)

	got := d.Dispatch("show_users")
	if !strings.Contains(got, "Amy\tOnline") || !strings.Contains(got, "Bob\tOffline") {
		t.Fatalf("show_users output missing rows:\n%s", got)
	}
}

func TestDispatchExportUsers(t *testing.T) {
	t.Parallel()

	ctl := &fakeController{accounts: []model.Account{
		{Username: "Amy", IsAdmin: true},
		{Username: "Bob", IsBanned: true},
	}}
	d := NewDispatcher(ctl)

	got := d.Dispatch("export_users")
	for _, want := range []string{"username: Amy", "admin: true", "username: Bob", "banned: true"} {
		if !strings.Contains(got, want) {
			t.Fatalf("export missing %q:\n%s", want, got)
		}
	}
}

func TestHistoryRecall(t *testing.T) {
	t.Parallel()

	h := NewHistory()
	if _, ok := h.Prev(); ok {
		t.Fatal("Prev on empty buffer returned a command")
	}

	h.Put("first")
	h.Put("second")
	h.Put("third")

	if got, _ := h.Prev(); got != "third" {
		t.Fatalf("Prev = %q, want %q", got, "third")
	}
	if got, _ := h.Prev(); got != "second" {
		t.Fatalf("Prev = %q, want %q", got, "second")
	}
	if got, _ := h.Next(); got != "third" {
		t.Fatalf("Next = %q, want %q", got, "third")
	}
	if _, ok := h.Next(); ok {
		t.Fatal("Next past the newest entry returned a command")
	}

	// A new command resets the cursor to the end.
	h.Put("fourth")
	if got, _ := h.Prev(); got != "fourth" {
		t.Fatalf("Prev after Put = %q, want %q", got, "fourth")
	}
}
