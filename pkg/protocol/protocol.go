// Package protocol defines the line-oriented text protocol spoken between
// chat clients and the server.
//
// Every message is one UTF-8 line. Fields within a line are separated by '#'.
// The first field of a client line selects the command.
package protocol

import (
	"bufio"
	"io"
	"strings"

	"github.com/LaTsa99/LaTsaServer/pkg/model"
)

// Server replies and notices.
const (
	Accepted   = "ACCEPTED"
	Refused    = "REFUSED"
	OK         = "OK"
	OKAdmin    = "OK_ADMIN"
	Disconnect = "disconnect"

	KickSelf   = "kick#YOU"
	KickAdmin  = "kick#ADMIN"
	KickDone   = "kick#KICKED"
	KickNotice = "kick#REKT"

	BanSelf   = "ban#YOU"
	BanAdmin  = "ban#ADMIN"
	BanDone   = "ban#BANNED"
	BanLogin  = "ban#REKT"
	banPrefix = "ban#"
)

// Error formats an error reply line.
func Error(reason string) string {
	return "Error: " + reason
}

// BanNotice formats the terminal notice sent to a banned user.
func BanNotice(reason string) string {
	return banPrefix + reason
}

// Kind identifies a decoded client command.
type Kind int

const (
	KindInvalid Kind = iota
	KindLogin
	KindRegister
	KindDisconnect
	KindMsg
	KindKick
	KindBan
)

// Command is a client protocol line decoded into a tagged variant. Only the
// fields relevant to Kind are populated.
type Command struct {
	Kind       Kind
	Username   string // login, register
	Credential string // login, register
	Target     string // kick, ban
	Reason     string // ban
	Body       string // msg
}

// Parse decodes one client line. A recognized command with the wrong field
// count decodes to KindInvalid, as does anything unrecognized.
func Parse(line string) Command {
	fields := strings.Split(line, "#")
	switch fields[0] {
	case "login":
		if len(fields) == 3 {
			return Command{Kind: KindLogin, Username: fields[1], Credential: fields[2]}
		}
	case "register":
		if len(fields) == 3 {
			return Command{Kind: KindRegister, Username: fields[1], Credential: fields[2]}
		}
	case "disconnect":
		if len(fields) == 1 {
			return Command{Kind: KindDisconnect}
		}
	case "msg":
		if len(fields) > 1 {
			return Command{Kind: KindMsg, Body: strings.Join(fields[1:], " ")}
		}
	case "kick":
		if len(fields) == 2 {
			return Command{Kind: KindKick, Target: fields[1]}
		}
	case "ban":
		if len(fields) == 3 {
			return Command{Kind: KindBan, Target: fields[1], Reason: fields[2]}
		}
	}
	return Command{Kind: KindInvalid}
}

const adminMarker = "(admin)"

// FormatChat builds the canonical broadcast form of a chat message:
// "<sender># <body>", with an "(admin)" marker after the sender name when the
// sender is an admin.
func FormatChat(sender string, admin bool, body string) string {
	if admin {
		return sender + adminMarker + "# " + body
	}
	return sender + "# " + body
}

// FormatPresence builds a presence-update line: "user#<name>#<status>".
func FormatPresence(name string, p model.Presence) string {
	return "user#" + name + "#" + string(p)
}

// IsPresence reports whether a line is a presence update. Presence lines are
// re-derived at login rather than replayed, so they are excluded from the
// message history.
func IsPresence(line string) bool {
	idx := strings.IndexByte(line, '#')
	return idx >= 0 && line[:idx] == "user"
}

// RewriteOwn rewrites a line for delivery to a specific recipient: when the
// sender prefix names the recipient itself, the prefix becomes "Me" so each
// client sees its own messages labeled distinctly. The stored and broadcast
// copy always carries the real username; this rewrite happens per recipient
// at delivery time.
func RewriteOwn(line, username string, admin bool) string {
	idx := strings.IndexByte(line, '#')
	if idx < 0 {
		return line
	}
	sender := strings.TrimSuffix(line[:idx], adminMarker)
	if sender != username {
		return line
	}
	if admin {
		return "Me" + adminMarker + line[idx:]
	}
	return "Me" + line[idx:]
}

// ReadLine reads one protocol line, tolerating CRLF terminators. A final line
// without a terminator is returned alongside io.EOF on the following call.
func ReadLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		if err == io.EOF && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// WriteLine writes one protocol line with a trailing newline.
func WriteLine(w io.Writer, line string) error {
	_, err := io.WriteString(w, line+"\n")
	return err
}
