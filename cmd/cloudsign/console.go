// CloudSign - group game relay for chat bots
// License: MIT
//
// Copyright (c) 2026 CloudSign contributors

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/monarchdos/cloudsign/pkg/cloudsign"
)

var consoleAtCode = regexp.MustCompile(`\[CQ:at,qq=([^,\]]+)`)

// consoleSession pretends to be one group member typing into a group chat.
type consoleSession struct {
	handler *cloudsign.Handler
	base    cloudsign.IncomingMessage
	out     io.Writer
	seq     int
}

func newConsoleSession(opts cloudsign.Options, transport cloudsign.Transport, base cloudsign.IncomingMessage, out io.Writer) *consoleSession {
	s := &consoleSession{base: base, out: out}
	s.handler = cloudsign.NewHandler(opts, transport, cloudsign.ReplierFunc(
		func(_ context.Context, _ cloudsign.IncomingMessage, reply cloudsign.Reply) error {
			_, err := fmt.Fprintf(out, "\n%s %s\n\n", logo, reply.PlainText())
			return err
		}))
	return s
}

func (s *consoleSession) run(ctx context.Context, line string) cloudsign.Result {
	s.seq++
	msg := s.base
	msg.RawText = line
	msg.MessageID = "console-" + strconv.Itoa(s.seq)
	msg.MentionedUserIDs = append([]string(nil), s.base.MentionedUserIDs...)
	for _, m := range consoleAtCode.FindAllStringSubmatch(line, -1) {
		msg.MentionedUserIDs = append(msg.MentionedUserIDs, m[1])
	}

	result := s.handler.Handle(ctx, msg, func() {
		fmt.Fprintln(s.out, "(not a game command)")
	})
	switch result {
	case cloudsign.ResultDropped:
		fmt.Fprintln(s.out, "(no reply from service)")
	case cloudsign.ResultFailed:
		fmt.Fprintln(s.out, "(request failed, see log)")
	}
	return result
}

func consoleCmd() {
	message := ""
	base := cloudsign.IncomingMessage{
		SenderID:   "10001",
		SenderName: "console",
		GroupID:    "10000",
		BotID:      "10002",
		Platform:   "onebot",
	}

	args := os.Args[2:]
	for i := 0; i < len(args); i++ {
		if i+1 >= len(args) {
			break
		}
		switch args[i] {
		case "-m", "--message":
			message = args[i+1]
		case "--group":
			base.GroupID = args[i+1]
		case "--user":
			base.SenderID = args[i+1]
		case "--name":
			base.SenderName = args[i+1]
		case "--mention":
			base.MentionedUserIDs = append(base.MentionedUserIDs, args[i+1])
		default:
			continue
		}
		i++
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := setupLogging(cfg, false); err != nil {
		fmt.Printf("Error setting up logging: %v\n", err)
		os.Exit(1)
	}

	session := newConsoleSession(cfg.Options(), cloudsign.NewClient(), base, os.Stdout)

	if message != "" {
		if session.run(context.Background(), message) == cloudsign.ResultFailed {
			os.Exit(1)
		}
		return
	}

	fmt.Printf("%s Console mode as %s in group %s (Ctrl+C to exit)\n\n", logo, base.SenderID, base.GroupID)
	interactiveMode(session)
}

func interactiveMode(session *consoleSession) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          fmt.Sprintf("%s > ", logo),
		HistoryFile:     filepath.Join(os.TempDir(), ".cloudsign_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Printf("Error initializing readline: %v\n", err)
		fmt.Println("Falling back to simple input mode...")
		simpleInteractiveMode(session, os.Stdin)
		return
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				fmt.Println("\nGoodbye!")
				return
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}
		if !handleConsoleInput(session, line) {
			return
		}
	}
}

func simpleInteractiveMode(session *consoleSession, in io.Reader) {
	reader := bufio.NewReader(in)
	for {
		fmt.Fprintf(session.out, "%s > ", logo)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			if err == io.EOF {
				fmt.Fprintln(session.out, "\nGoodbye!")
				return
			}
			fmt.Fprintf(session.out, "Error reading input: %v\n", err)
			continue
		}
		if !handleConsoleInput(session, line) {
			return
		}
	}
}

// handleConsoleInput reports whether the console should keep reading.
func handleConsoleInput(session *consoleSession, line string) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return true
	}
	if input == "exit" || input == "quit" {
		fmt.Fprintln(session.out, "Goodbye!")
		return false
	}
	session.run(context.Background(), input)
	return true
}
