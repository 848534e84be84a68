// Command client is a minimal line-oriented client for the chat protocol,
// intended for manual testing. Lines typed on stdin are sent verbatim
// (e.g. "login#amy#secret", "msg#hello"); server lines print to stdout.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"

	"github.com/LaTsa99/LaTsaServer/pkg/logging"
	"github.com/LaTsa99/LaTsaServer/pkg/protocol"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:26000", "server address")
	logLevel := flag.String("log-level", "warn", "Log level: debug, info, warn, error")
	flag.Parse()

	if err := logging.Setup(logging.Options{Level: *logLevel}); err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging config: %v\n", err)
		os.Exit(1)
	}

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		slog.Error("connect failed", "addr", *addr, "err", err)
		os.Exit(1)
	}
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		r := bufio.NewReader(conn)
		for {
			line, err := protocol.ReadLine(r)
			if err != nil {
				return
			}
			fmt.Println(line)
			if line == protocol.Disconnect || line == protocol.Refused {
				return
			}
		}
	}()

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			if err := protocol.WriteLine(conn, scanner.Text()); err != nil {
				slog.Error("send failed", "err", err)
				return
			}
		}
		_ = protocol.WriteLine(conn, "disconnect")
	}()

	<-done
}
