// Package console implements the server admin console: a dispatcher that
// maps operator command lines to server moderation entry points and renders
// their outcome, plus the command recall buffer used by the interactive loop.
package console

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/LaTsa99/LaTsaServer/pkg/model"
	"github.com/LaTsa99/LaTsaServer/pkg/server"
)

// Controller is the slice of the server the console drives.
type Controller interface {
	Users() []server.UserStatus
	Accounts() []model.Account
	ClearHistory()
	Kick(username string) error
	Ban(username, reason string) error
	Unban(username string) error
	BanIP(ip string) error
	UnbanIP(ip string) error
	DeleteUser(username string) error
	SetAdmin(username string, admin bool) error
	SetMirror(on bool)
}

// Dispatcher parses operator command lines and executes them against a
// Controller.
type Dispatcher struct {
	ctl Controller
}

// NewDispatcher creates a dispatcher driving the given controller.
func NewDispatcher(ctl Controller) *Dispatcher {
	return &Dispatcher{ctl: ctl}
}

// userYAML is one account row of an export_users dump.
type userYAML struct {
	Username string `yaml:"username"`
	Admin    bool   `yaml:"admin"`
	Banned   bool   `yaml:"banned"`
}

type usersExport struct {
	Users []userYAML `yaml:"users"`
}

// Dispatch executes one command line and returns the text to show the
// operator. An empty line yields an empty result.
func (d *Dispatcher) Dispatch(line string) string {
	fields := strings.Split(strings.TrimSpace(line), " ")
	switch {
	case fields[0] == "":
		return ""
	case fields[0] == "show_users" && len(fields) == 1:
		return d.showUsers()
	case fields[0] == "delete_history" && len(fields) == 1:
		d.ctl.ClearHistory()
		return "History deleted successfully!"
	case fields[0] == "kick_user" && len(fields) == 2:
		return d.kickUser(targetName(fields[1]))
	case fields[0] == "ban_user" && len(fields) >= 3:
		return d.banUser(targetName(fields[1]), strings.Join(fields[2:], " "))
	case fields[0] == "remove_ban" && len(fields) == 2:
		return d.removeBan(targetName(fields[1]))
	case fields[0] == "ban_ip" && len(fields) == 2:
		return d.banIP(fields[1])
	case fields[0] == "unban_ip" && len(fields) == 2:
		return d.unbanIP(fields[1])
	case fields[0] == "delete_user" && len(fields) == 2:
		return d.deleteUser(targetName(fields[1]))
	case fields[0] == "add_admin" && len(fields) == 2:
		return d.setAdmin(targetName(fields[1]), true)
	case fields[0] == "remove_admin" && len(fields) == 2:
		return d.setAdmin(targetName(fields[1]), false)
	case fields[0] == "show_msg" && len(fields) == 1:
		d.ctl.SetMirror(true)
		return "Chat messages will be shown."
	case fields[0] == "hide_msg" && len(fields) == 1:
		d.ctl.SetMirror(false)
		return "Chat messages will be hidden."
	case fields[0] == "export_users" && len(fields) == 1:
		return d.exportUsers()
	case fields[0] == "help" && len(fields) == 1:
		return helpText
	default:
		return "Error: Not a valid command!"
	}
}

// targetName translates the console convention for multi-word usernames:
// underscores in a name argument stand for spaces.
func targetName(arg string) string {
	return strings.ReplaceAll(arg, "_", " ")
}

func (d *Dispatcher) showUsers() string {
	var b strings.Builder
	b.WriteString("users\tonline\n")
	b.WriteString("------------------------------------------------------------------------------")
	for _, u := range d.ctl.Users() {
		fmt.Fprintf(&b, "\n%s\t%s", u.Username, u.Status)
	}
	return b.String()
}

func (d *Dispatcher) kickUser(user string) string {
	err := d.ctl.Kick(user)
	switch {
	case errors.Is(err, model.ErrUnknownUser):
		return "Error: No such user!"
	case errors.Is(err, model.ErrUserOffline):
		return "Error: selected user is offline!"
	case err != nil:
		return "Error: " + err.Error()
	}
	return fmt.Sprintf("%s has been kicked.", user)
}

func (d *Dispatcher) banUser(user, reason string) string {
	err := d.ctl.Ban(user, reason)
	switch {
	case errors.Is(err, model.ErrUnknownUser):
		return "Error: No such user!"
	case errors.Is(err, model.ErrAlreadyBanned):
		return "Error: User is already banned!"
	case err != nil:
		return "Error: " + err.Error()
	}
	return fmt.Sprintf("%s banned successfully!", user)
}

func (d *Dispatcher) removeBan(user string) string {
	err := d.ctl.Unban(user)
	switch {
	case errors.Is(err, model.ErrUnknownUser):
		return "Error: No such user!"
	case errors.Is(err, model.ErrNotBanned):
		return "Error: User is not banned."
	case err != nil:
		return "Error: " + err.Error()
	}
	return "Ban removed from user."
}

func (d *Dispatcher) banIP(ip string) string {
	err := d.ctl.BanIP(ip)
	switch {
	case errors.Is(err, model.ErrInvalidIP):
		return "Error: This is not an IP address!"
	case errors.Is(err, model.ErrIPListed):
		return "Error: IP address already banned."
	case err != nil:
		return "Error: " + err.Error()
	}
	return "IP address added to blacklist!"
}

func (d *Dispatcher) unbanIP(ip string) string {
	err := d.ctl.UnbanIP(ip)
	switch {
	case errors.Is(err, model.ErrInvalidIP):
		return "Error: This is not an IP address!"
	case errors.Is(err, model.ErrIPNotListed):
		return "Error: IP address is not on blacklist!"
	case err != nil:
		return "Error: " + err.Error()
	}
	return "IP removed from blacklist!"
}

func (d *Dispatcher) deleteUser(user string) string {
	err := d.ctl.DeleteUser(user)
	switch {
	case errors.Is(err, model.ErrUnknownUser):
		return "Error: User doesn't exist!"
	case err != nil:
		return "Error: " + err.Error()
	}
	return fmt.Sprintf("%s removed from users!", user)
}

func (d *Dispatcher) setAdmin(user string, admin bool) string {
	err := d.ctl.SetAdmin(user, admin)
	switch {
	case errors.Is(err, model.ErrUnknownUser):
		return "Error: No such user!"
	case errors.Is(err, model.ErrAlreadyAdmin):
		return "Error: User is already admin!"
	case errors.Is(err, model.ErrNotAdmin):
		return "Error: user is not an admin!"
	case err != nil:
		return "Error: " + err.Error()
	}
	if admin {
		return fmt.Sprintf("%s is now an admin!", user)
	}
	return fmt.Sprintf("%s is now not an admin!", user)
}

func (d *Dispatcher) exportUsers() string {
	export := usersExport{}
	for _, a := range d.ctl.Accounts() {
		export.Users = append(export.Users, userYAML{
			Username: a.Username,
			Admin:    a.IsAdmin,
			Banned:   a.IsBanned,
		})
	}
	data, err := yaml.Marshal(&export)
	if err != nil {
		return "Error: " + err.Error()
	}
	return string(data)
}

const helpText = `Available commands:
  show_users                 list registered users and their status
  delete_history             delete the chat history
  kick_user <name>           disconnect a user
  ban_user <name> <reason>   ban a user (underscores in name stand for spaces)
  remove_ban <name>          lift a user ban
  ban_ip <ip>                refuse connections from an IPv4 address
  unban_ip <ip>              remove an address from the blacklist
  delete_user <name>         delete a user account
  add_admin <name>           grant admin rights
  remove_admin <name>        revoke admin rights
  show_msg / hide_msg        mirror chat messages to the console
  export_users               dump all accounts as YAML
  stop_server                persist state and exit
  help                       show this list`
