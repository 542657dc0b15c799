package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/huddle-im/huddle/internal/bus"
	"github.com/huddle-im/huddle/internal/cache"
	"github.com/huddle-im/huddle/internal/client"
	"github.com/huddle-im/huddle/internal/config"
	"github.com/huddle-im/huddle/internal/home"
	"github.com/huddle-im/huddle/internal/store"
	"github.com/huddle-im/huddle/internal/syncer"
	"go.uber.org/zap"
)

func main() {
	serverFlag := flag.String("server", "", "daemon base URL (overrides config)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	cfg, err := config.Load(home.ConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if *serverFlag != "" {
		cfg.ServerURL = *serverFlag
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	if args[0] == "login" {
		cmdLogin(cfg, args[1:])
		return
	}

	if cfg.Token == "" {
		fmt.Fprintln(os.Stderr, "error: not logged in; run: huddlectl login <token>")
		os.Exit(1)
	}
	rest := client.NewREST(cfg.ServerURL, cfg.Token)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	switch args[0] {
	case "requests":
		cmdRequests(ctx, rest, args[1:], *jsonFlag)
	case "request":
		cmdRequest(ctx, rest, args[1:])
	case "contacts":
		cmdContacts(ctx, rest, *jsonFlag)
	case "chats":
		cmdChats(ctx, rest, *jsonFlag)
	case "chat":
		cmdChat(ctx, rest, args[1:], *jsonFlag)
	case "group":
		cmdGroup(ctx, rest, args[1:])
	case "messages":
		cmdMessages(ctx, rest, args[1:], *jsonFlag)
	case "send":
		cmdSend(ctx, rest, args[1:])
	case "read":
		cmdRead(ctx, rest, args[1:])
	case "presence":
		cmdPresence(ctx, rest, args[1:])
	case "watch":
		cancel()
		cmdWatch(cfg, rest)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: huddlectl [--server <url>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  login <token>              Store the bearer token")
	fmt.Fprintln(os.Stderr, "  requests [pending|sent]    List chat requests")
	fmt.Fprintln(os.Stderr, "  request send <userId>      Send a chat request")
	fmt.Fprintln(os.Stderr, "  request accept <id>        Accept a request")
	fmt.Fprintln(os.Stderr, "  request decline <id>       Decline (or cancel) a request")
	fmt.Fprintln(os.Stderr, "  contacts                   List contacts")
	fmt.Fprintln(os.Stderr, "  chats                      List chats")
	fmt.Fprintln(os.Stderr, "  chat <userId>              Open the direct chat with a contact")
	fmt.Fprintln(os.Stderr, "  group <name> <userId>...   Create a group chat")
	fmt.Fprintln(os.Stderr, "  messages <chatId>          Show chat history")
	fmt.Fprintln(os.Stderr, "  send <chatId> <text>       Send a message")
	fmt.Fprintln(os.Stderr, "  read <chatId>              Mark a chat read")
	fmt.Fprintln(os.Stderr, "  presence <status>          Set own status")
	fmt.Fprintln(os.Stderr, "  watch                      Stream events until interrupted")
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func cmdLogin(cfg *config.Config, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: huddlectl login <token>")
		os.Exit(1)
	}
	cfg.Token = args[0]
	if err := config.Save(home.ConfigPath(), cfg); err != nil {
		fatal(err)
	}
	fmt.Println("token saved")
}

func cmdRequests(ctx context.Context, rest *client.REST, args []string, jsonOut bool) {
	which := "pending"
	if len(args) > 0 {
		which = args[0]
	}

	var (
		requests []store.RequestWithPeer
		err      error
	)
	switch which {
	case "pending":
		requests, err = rest.PendingRequests(ctx)
	case "sent":
		requests, err = rest.SentRequests(ctx)
	default:
		fmt.Fprintln(os.Stderr, "usage: huddlectl requests [pending|sent]")
		os.Exit(1)
	}
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(requests)
		return
	}
	if len(requests) == 0 {
		fmt.Println("no requests")
		return
	}
	for _, r := range requests {
		fmt.Printf("%s  %s <%s>\n", r.ID, r.Peer.Name, r.Peer.Email)
	}
}

func cmdRequest(ctx context.Context, rest *client.REST, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: huddlectl request <send|accept|decline> <id>")
		os.Exit(1)
	}
	switch args[0] {
	case "send":
		r, err := rest.SendChatRequest(ctx, args[1], "", "")
		if err != nil {
			fatal(err)
		}
		fmt.Printf("request %s sent\n", r.ID)
	case "accept":
		chatID, err := rest.AcceptRequest(ctx, args[1])
		if err != nil {
			fatal(err)
		}
		fmt.Printf("accepted; chat %s\n", chatID)
	case "decline":
		if err := rest.DeclineRequest(ctx, args[1]); err != nil {
			fatal(err)
		}
		fmt.Println("declined")
	default:
		fmt.Fprintln(os.Stderr, "usage: huddlectl request <send|accept|decline> <id>")
		os.Exit(1)
	}
}

func cmdContacts(ctx context.Context, rest *client.REST, jsonOut bool) {
	contacts, err := rest.Contacts(ctx)
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(contacts)
		return
	}
	if len(contacts) == 0 {
		fmt.Println("no contacts")
		return
	}
	for _, c := range contacts {
		fmt.Printf("%s  %s <%s>\n", c.UserID, c.Name, c.Email)
	}
}

func cmdChats(ctx context.Context, rest *client.REST, jsonOut bool) {
	chats, err := rest.ListChats(ctx)
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(chats)
		return
	}
	if len(chats) == 0 {
		fmt.Println("no chats")
		return
	}
	for _, c := range chats {
		name := c.Name
		if c.Counterpart != nil {
			name = c.Counterpart.Name
		}
		fmt.Printf("%s  %-20s  %s\n", c.ID, name, c.LastMessage)
	}
}

func cmdChat(ctx context.Context, rest *client.REST, args []string, jsonOut bool) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: huddlectl chat <userId>")
		os.Exit(1)
	}
	c, err := rest.ResolveDirect(ctx, args[0])
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(c)
		return
	}
	fmt.Printf("chat %s\n", c.ID)
}

func cmdGroup(ctx context.Context, rest *client.REST, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: huddlectl group <name> <userId>...")
		os.Exit(1)
	}
	c, err := rest.CreateGroup(ctx, args[0], args[1:])
	if err != nil {
		fatal(err)
	}
	fmt.Printf("group %s created\n", c.ID)
}

func cmdMessages(ctx context.Context, rest *client.REST, args []string, jsonOut bool) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: huddlectl messages <chatId>")
		os.Exit(1)
	}
	msgs, err := rest.ListMessages(ctx, args[0], 50, 0)
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(msgs)
		return
	}
	for _, m := range msgs {
		ts := time.UnixMilli(m.CreatedAt).Format("15:04")
		fmt.Printf("[%s] %s: %s\n", ts, m.SenderName, m.Content)
	}
}

func cmdSend(ctx context.Context, rest *client.REST, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: huddlectl send <chatId> <text>")
		os.Exit(1)
	}
	m, err := rest.SendMessage(ctx, "", args[0], args[1])
	if err != nil {
		fatal(err)
	}
	fmt.Printf("sent %s\n", m.ID)
}

func cmdRead(ctx context.Context, rest *client.REST, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: huddlectl read <chatId>")
		os.Exit(1)
	}
	if err := rest.MarkRead(ctx, args[0]); err != nil {
		fatal(err)
	}
	fmt.Println("marked read")
}

func cmdPresence(ctx context.Context, rest *client.REST, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: huddlectl presence <online|away|busy|offline>")
		os.Exit(1)
	}
	p, err := rest.ReportPresence(ctx, args[0])
	if err != nil {
		fatal(err)
	}
	fmt.Printf("presence set to %s\n", p.Status)
}

// tokenSubject extracts the user id from the token without verifying
// it; the daemon is the verifier, the CLI only needs the id for cache
// scoping.
func tokenSubject(token string) string {
	claims := jwt.MapClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(token, claims)
	if err != nil {
		return ""
	}
	sub, _ := claims.GetSubject()
	return sub
}

func cmdWatch(cfg *config.Config, rest *client.REST) {
	userID := tokenSubject(cfg.Token)
	if userID == "" {
		fatal(fmt.Errorf("token has no subject"))
	}
	if err := home.EnsureDirs(); err != nil {
		fatal(err)
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		fatal(err)
	}

	b := bus.New()
	machine := client.NewMachine(b)
	stream := client.NewStream(cfg.ServerURL, cfg.Token, b, machine, logger)

	cacheStore := cache.New(home.CacheDir(), cache.DefaultTTL)
	cacheStore.Sweep()

	sync := syncer.New(rest, b, cacheStore, userID,
		func(r store.RequestWithPeer) {
			fmt.Printf("* new chat request from %s <%s>\n", r.Peer.Name, r.Peer.Email)
		}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream.Start(ctx)
	sync.Start(ctx)

	ch, unsub := b.Subscribe("", 128)
	defer unsub()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	fmt.Println("watching; ctrl-c to stop")
	for {
		select {
		case evt := <-ch:
			fmt.Printf("%s  %s\n", evt.Timestamp.Format("15:04:05"), evt.Kind)
		case <-sig:
			fmt.Println("stopping")
			sync.Stop()
			stream.Stop()
			return
		}
	}
}
