package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gymbro/internal/app/api"
	"gymbro/internal/app/auth"
	"gymbro/internal/app/chat"
	"gymbro/internal/app/feed"
	"gymbro/internal/app/session"
	"gymbro/internal/pkg/errs"
	"gymbro/internal/pkg/logx"
)

const (
	feedPageSize    = 10
	historyPageSize = 30
)

const helpText = `Commands:
  login <email> <password>             sign in
  register <username> <email> <pass>   create an account
  google                               print the Google sign-in URL
  google <state> <code>                finish Google sign-in
  logout                               sign out
  feed [page]                          show the feed
  like <postId>                        like or unlike a post
  comment <postId> <text>              comment on a post
  post [@image] <text>                 publish a post
  profile [userId]                     show a profile
  profile edit <username> [bio]        edit your profile
  advise <nutrition|workout> <prompt>  ask the AI advisor
  chats                                list conversations
  open <userId>                        open a conversation
  history                              load older messages
  say <text>                           send a message
  type                                 signal that you are typing
  read                                 mark the conversation read
  online                               list online users
  quit                                 exit`

// routes maps console commands to the views they stand for.
var routes = map[string]string{
	"login":    api.LoginRoute,
	"register": "/register",
	"google":   "/oauth/callback",
	"logout":   "/",
	"feed":     "/",
	"like":     "/",
	"comment":  "/",
	"post":     "/",
	"profile":  "/profile",
	"advise":   "/advisor",
	"chats":    "/chats",
	"open":     "/chats",
	"history":  "/chats",
	"say":      "/chats",
	"type":     "/chats",
	"read":     "/chats",
	"online":   "/chats",
}

type console struct {
	client    *api.Client
	auth      *auth.Service
	sessions  *session.Manager
	feed      *feed.Cache
	transport *chat.Transport
	out       io.Writer

	// currentChat is the conversation "say", "type", "read" and "history" act on.
	currentChat string
}

// run reads commands from in until quit, end of input or ctx is done.
func (c *console) run(ctx context.Context, in io.Reader) {
	unsubscribe := c.transport.Subscribe(c.onChatEvent)
	defer unsubscribe()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Fprintln(c.out, "GYMbro console. Type 'help' for commands.")
	c.prompt()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if !c.execute(ctx, line) {
				return
			}
			c.prompt()
		}
	}
}

func (c *console) prompt() {
	who := "guest"
	if u := c.auth.CurrentUser(); u != nil {
		who = u.Username
	}
	if c.currentChat != "" {
		who += "@" + c.currentChat
	}
	fmt.Fprintf(c.out, "%s> ", who)
}

// execute runs one command line. It returns false when the console should exit.
func (c *console) execute(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return true
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "quit", "exit":
		return false
	case "help":
		fmt.Fprintln(c.out, helpText)
		return true
	}

	route, known := routes[cmd]
	if !known {
		fmt.Fprintf(c.out, "Unknown command %q. Type 'help'.\n", cmd)
		return true
	}
	if decision := c.auth.Guard(route); !decision.Allowed {
		fmt.Fprintf(c.out, "Please log in first (redirect to %s).\n", decision.Redirect)
		return true
	}

	var err error
	switch cmd {
	case "login":
		err = c.login(ctx, args)
	case "register":
		err = c.register(ctx, args)
	case "google":
		err = c.google(ctx, args)
	case "logout":
		err = c.auth.Logout(ctx)
		c.currentChat = ""
		if err == nil {
			fmt.Fprintln(c.out, "Logged out.")
		}
	case "feed":
		err = c.showFeed(ctx, args)
	case "like":
		err = c.like(ctx, args)
	case "comment":
		err = c.comment(ctx, args)
	case "post":
		err = c.post(ctx, args)
	case "profile":
		err = c.profile(ctx, args)
	case "advise":
		err = c.advise(ctx, args)
	case "chats":
		err = c.chats(ctx)
	case "open":
		err = c.open(ctx, args)
	case "history":
		err = c.history(ctx)
	case "say":
		err = c.say(ctx, args)
	case "type":
		err = c.withChat(func(chatID string) error {
			c.transport.Typing(chatID)
			return nil
		})
	case "read":
		err = c.withChat(func(chatID string) error {
			return c.transport.MarkRead(ctx, chatID)
		})
	case "online":
		c.online()
	}

	if err != nil {
		logx.Debug("Command failed", "command", cmd, "error", err.Error())
		fmt.Fprintf(c.out, "Error: %s\n", errs.UserMessage(err))
	}
	return true
}

func usage(format string) error {
	return errs.NewError(errs.ErrValidation, "usage: "+format)
}

func (c *console) login(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usage("login <email> <password>")
	}
	u, err := c.auth.Login(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Welcome back, %s.\n", u.Username)
	return nil
}

func (c *console) register(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return usage("register <username> <email> <password>")
	}
	u, err := c.auth.Register(ctx, args[0], args[1], args[2])
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Welcome, %s.\n", u.Username)
	return nil
}

func (c *console) google(ctx context.Context, args []string) error {
	switch len(args) {
	case 0:
		authURL, err := c.auth.GoogleAuthURL()
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Open this URL, then run 'google <state> <code>' with the callback values:\n%s\n", authURL)
		return nil
	case 2:
		u, err := c.auth.CompleteGoogle(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Signed in with Google as %s.\n", u.Username)
		return nil
	default:
		return usage("google [<state> <code>]")
	}
}

func (c *console) showFeed(ctx context.Context, args []string) error {
	page := 1
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return usage("feed [page]")
		}
		page = n
	}

	if _, err := c.feed.Refresh(ctx, page, feedPageSize); err != nil {
		return err
	}

	posts := c.feed.Posts()
	if len(posts) == 0 {
		fmt.Fprintln(c.out, "The feed is empty.")
		return nil
	}
	for _, p := range posts {
		c.printPost(p)
	}
	if c.feed.HasMore() {
		fmt.Fprintf(c.out, "More posts: feed %d\n", page+1)
	}
	return nil
}

func (c *console) printPost(p api.Post) {
	heart := " "
	if p.Liked {
		heart = "*"
	}
	fmt.Fprintf(c.out, "[%s] %s  %s (%s)\n", p.ID, p.Author.Username, p.CreatedAt.Local().Format(time.DateTime), heart)
	fmt.Fprintf(c.out, "    %s\n", p.Content)
	if p.Image != "" {
		fmt.Fprintf(c.out, "    image: %s\n", p.Image)
	}
	fmt.Fprintf(c.out, "    %d likes, %d comments\n", p.LikesCount, p.CommentsCount)
}

func (c *console) like(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("like <postId>")
	}
	p, err := c.feed.ToggleLike(ctx, args[0])
	if err != nil {
		return err
	}
	c.printPost(p)
	return nil
}

func (c *console) comment(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return usage("comment <postId> <text>")
	}
	p, err := c.feed.AddComment(ctx, args[0], strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	c.printPost(p)
	return nil
}

func (c *console) post(ctx context.Context, args []string) error {
	var image io.Reader
	var imageName string

	if len(args) > 0 && strings.HasPrefix(args[0], "@") {
		path := strings.TrimPrefix(args[0], "@")
		f, err := os.Open(path)
		if err != nil {
			return errs.Wrap(errs.ErrValidation, err, "cannot open image "+path)
		}
		defer f.Close()
		image, imageName = f, filepath.Base(path)
		args = args[1:]
	}
	if len(args) == 0 {
		return usage("post [@image] <text>")
	}

	p, err := c.feed.CreatePost(ctx, strings.Join(args, " "), image, imageName)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, "Posted.")
	c.printPost(p)
	return nil
}

func (c *console) profile(ctx context.Context, args []string) error {
	if len(args) > 0 && args[0] == "edit" {
		if len(args) < 2 {
			return usage("profile edit <username> [bio]")
		}
		u, err := c.auth.UpdateProfile(ctx, api.ProfileUpdate{
			Username: args[1],
			Bio:      strings.Join(args[2:], " "),
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Profile updated: %s\n", u.Username)
		return nil
	}

	userID := c.sessions.UserID()
	if len(args) > 0 {
		userID = args[0]
	}
	p, err := c.client.GetProfile(ctx, userID)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "%s (%s)\n", p.Username, p.ID)
	if p.Bio != "" {
		fmt.Fprintf(c.out, "  %s\n", p.Bio)
	}
	fmt.Fprintf(c.out, "  %d followers, %d following, %d posts\n", p.Followers, p.Following, len(p.Posts))
	return nil
}

func (c *console) advise(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return usage("advise <nutrition|workout> <prompt>")
	}
	advice, err := c.client.Advise(ctx, api.AdviceRequest{
		Kind:   strings.ToLower(args[0]),
		Prompt: strings.Join(args[1:], " "),
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, advice.Content)
	return nil
}

func (c *console) chats(ctx context.Context) error {
	list, err := c.client.ListChats(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(c.out, "No conversations yet. Start one with 'open <userId>'.")
		return nil
	}

	self := c.sessions.UserID()
	for _, ch := range list {
		name, status := "(unknown)", "offline"
		if peer := ch.Peer(self); peer != nil {
			name = peer.Username
			if c.transport.IsOnline(peer.ID) {
				status = "online"
			}
		}
		last := ""
		if ch.LastMessage != nil {
			last = ch.LastMessage.Content
		}
		fmt.Fprintf(c.out, "[%s] %s (%s) unread=%d  %s\n", ch.ID, name, status, ch.UnreadCount, last)
	}
	return nil
}

func (c *console) open(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("open <userId>")
	}
	ch, err := c.client.OpenChatWith(ctx, args[0])
	if err != nil {
		return err
	}

	if c.currentChat != "" && c.currentChat != ch.ID {
		c.transport.Leave(c.currentChat)
	}
	c.currentChat = ch.ID
	c.transport.Join(ch.ID)

	if _, err := c.transport.LoadOlder(ctx, ch.ID, historyPageSize); err != nil {
		return err
	}
	c.printMessages(c.transport.Messages(ch.ID))
	return nil
}

func (c *console) history(ctx context.Context) error {
	return c.withChat(func(chatID string) error {
		if !c.transport.HasMore(chatID) {
			fmt.Fprintln(c.out, "No older messages.")
			return nil
		}
		added, err := c.transport.LoadOlder(ctx, chatID, historyPageSize)
		if err != nil {
			return err
		}
		c.printMessages(added)
		return nil
	})
}

func (c *console) say(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usage("say <text>")
	}
	return c.withChat(func(chatID string) error {
		msg, err := c.transport.Send(ctx, chatID, strings.Join(args, " "))
		if err != nil {
			return err
		}
		if msg.Status == chat.StatusSent {
			fmt.Fprintln(c.out, "Sent.")
		}
		return nil
	})
}

func (c *console) online() {
	ids := c.transport.Presence().UserIDs()
	if !c.transport.Connected() {
		fmt.Fprintln(c.out, "Chat is offline; showing the last known list.")
	}
	fmt.Fprintf(c.out, "%d online: %s\n", len(ids), strings.Join(ids, ", "))
}

func (c *console) withChat(fn func(chatID string) error) error {
	if c.currentChat == "" {
		return usage("open <userId> first")
	}
	return fn(c.currentChat)
}

func (c *console) printMessages(msgs []chat.Message) {
	self := c.sessions.UserID()
	for _, m := range msgs {
		who := m.SenderID
		if who == self {
			who = "you"
		}
		mark := ""
		switch m.Status {
		case chat.StatusPending:
			mark = " (sending)"
		case chat.StatusFailed:
			mark = " (failed)"
		}
		fmt.Fprintf(c.out, "%s %s: %s%s\n", m.CreatedAt.Local().Format(time.TimeOnly), who, m.Content, mark)
	}
}

// onChatEvent prints chat activity relevant to the user. It runs on the socket goroutine.
func (c *console) onChatEvent(ev chat.Event) {
	self := c.sessions.UserID()

	switch e := ev.(type) {
	case chat.NewMessage:
		if e.Message.SenderID != self {
			fmt.Fprintf(c.out, "\n[%s] %s: %s\n", e.Message.ChatID, e.Message.SenderID, e.Message.Content)
		}
	case chat.Disconnected:
		logx.Debug("Chat socket dropped")
	}
}
