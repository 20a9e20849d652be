package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"kuro/auth"
	"kuro/domain"
	"kuro/services"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
)

const help = `Commands:
  /signup <email> <password>   create an account and enter the chat
  /login <email> <password>    log in and enter the chat
  /logout                      leave the chat and end the session
  /contacts                    list contacts with their last message
  /select <email|id>           open the conversation with a contact
  /profile <name> [avatarUrl]  edit the display name and avatar
  /quit                        exit
Anything else is sent to the selected contact.`

// Console is the line based front end of the chat core.
type Console struct {
	log     *slog.Logger
	out     io.Writer
	auth    services.IAuthService
	session *services.Session
	chat    *services.ChatService

	mu      sync.Mutex
	printed map[string]bool // message id -> confirmed when printed
	refresh chan struct{}
}

func NewConsole(log *slog.Logger, out io.Writer, authService services.IAuthService, session *services.Session,
	chat *services.ChatService) *Console {
	c := &Console{
		log:     log,
		out:     out,
		auth:    authService,
		session: session,
		chat:    chat,
		printed: make(map[string]bool),
		refresh: make(chan struct{}, 1),
	}
	// Views call back with their lock held: only signal, render elsewhere
	notify := func() {
		select {
		case c.refresh <- struct{}{}:
		default:
		}
	}
	chat.Conversation().OnChange(notify)
	return c
}

// Render prints conversation updates until ctx is done.
func (c *Console) Render(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.refresh:
			c.renderConversation()
		}
	}
}

func (c *Console) renderConversation() {
	c.mu.Lock()
	defer c.mu.Unlock()
	conversation := c.chat.Conversation()
	if err := conversation.Stale(); err != nil {
		fmt.Fprintln(c.out, color.Yellow.Sprintf("(offline, showing last known messages: %v)", err))
	}
	selfID, _ := c.session.CurrentUserID()
	contacts := c.chat.Directory().Contacts()
	for _, message := range conversation.Messages() {
		confirmed, seen := c.printed[message.ID]
		if seen && (confirmed || message.Pending()) {
			continue
		}
		c.printed[message.ID] = !message.Pending()
		fmt.Fprintln(c.out, formatMessage(message, selfID, contacts))
	}
}

func formatMessage(message domain.Message, selfID string, contacts map[string]domain.Participant) string {
	author := color.Cyan.Sprint("you")
	if !message.IsFrom(selfID) {
		name := message.SenderID
		if contact, ok := contacts[message.SenderID]; ok {
			name = contact.Name()
		}
		author = color.Magenta.Sprint(name)
	}
	at := color.Yellow.Sprint("Sending...")
	if !message.Pending() {
		at = message.SentAt.Local().Format("15:04")
	}
	return fmt.Sprintf("[%s] %s: %s", at, author, message.Text)
}

// Serve reads commands from in until /quit, EOF or ctx is done.
func (c *Console) Serve(ctx context.Context, in io.Reader) error {
	fmt.Fprintln(c.out, help)
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		quit, err := c.handle(ctx, line)
		if err != nil {
			c.log.Debug("Command failed", "error", err)
			fmt.Fprintln(c.out, color.Red.Sprintf("error: %v", err))
		}
		if quit {
			return nil
		}
	}
	return scanner.Err()
}

func (c *Console) handle(ctx context.Context, line string) (bool, error) {
	if !strings.HasPrefix(line, "/") {
		return false, c.chat.Send(ctx, line)
	}
	fields := strings.Fields(line)
	args := fields[1:]
	switch fields[0] {
	case "/quit":
		return true, nil
	case "/help":
		fmt.Fprintln(c.out, help)
		return false, nil
	case "/signup", "/login":
		if len(args) != 2 {
			return false, fmt.Errorf("usage: %s <email> <password>", fields[0])
		}
		return false, c.enter(ctx, fields[0] == "/signup", args[0], args[1])
	case "/logout":
		c.resetPrinted()
		if err := c.auth.LogOut(); err != nil {
			return false, err
		}
		fmt.Fprintln(c.out, color.Green.Sprint("Logged out"))
		return false, nil
	case "/contacts":
		c.printContacts()
		return false, nil
	case "/select":
		if len(args) != 1 {
			return false, fmt.Errorf("usage: /select <email|id>")
		}
		return false, c.selectContact(ctx, args[0])
	case "/profile":
		if len(args) < 1 || len(args) > 2 {
			return false, fmt.Errorf("usage: /profile <name> [avatarUrl]")
		}
		profile := auth.ProfileRequest{DisplayName: args[0]}
		if len(args) == 2 {
			profile.AvatarURL = args[1]
		}
		return false, c.auth.UpdateProfile(ctx, profile)
	default:
		return false, fmt.Errorf("unknown command %s, try /help", fields[0])
	}
}

func (c *Console) enter(ctx context.Context, signUp bool, email, password string) error {
	var err error
	if signUp {
		_, err = c.auth.SignUp(ctx, email, password)
	} else {
		_, err = c.auth.LogIn(ctx, email, password)
	}
	if err != nil {
		return err
	}
	c.resetPrinted()
	if err = c.chat.Enter(ctx); err != nil {
		return err
	}
	fmt.Fprintln(c.out, color.Green.Sprintf("Welcome %s", email))
	return nil
}

func (c *Console) selectContact(ctx context.Context, ref string) error {
	contacts := c.chat.Directory().Contacts()
	contact, ok := contacts[ref]
	if !ok {
		contact, ok = lo.Find(lo.Values(contacts), func(p domain.Participant) bool {
			return strings.EqualFold(p.Email, ref)
		})
	}
	if !ok {
		return fmt.Errorf("no contact %q", ref)
	}
	c.resetPrinted()
	if err := c.chat.SelectContact(ctx, contact.ID); err != nil {
		return err
	}
	fmt.Fprintln(c.out, color.Green.Sprintf("Talking to %s", contact.Name()))
	return nil
}

func (c *Console) resetPrinted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.printed = make(map[string]bool)
}

func (c *Console) printContacts() {
	directory := c.chat.Directory()
	if err := directory.Stale(); err != nil {
		fmt.Fprintln(c.out, color.Yellow.Sprintf("(offline, showing last known contacts: %v)", err))
	}
	contacts := lo.Values(directory.Contacts())
	sort.Slice(contacts, func(i, j int) bool {
		return contacts[i].Email < contacts[j].Email
	})
	summaries := directory.Summaries()

	table := tablewriter.NewWriter(c.out)
	table.SetHeader([]string{"", "Name", "Email", "Last message"})
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, contact := range contacts {
		table.Append([]string{contact.Initial(), contact.Name(), contact.Email, lastMessage(summaries, contact.ID, directory.ContactStale(contact.ID))})
	}
	table.Render()
}

func lastMessage(summaries map[string]domain.ConversationSummary, contactID string, stale error) string {
	summary, ok := summaries[contactID]
	if !ok {
		return "(unavailable)"
	}
	last := "-"
	if summary.LastMessage != nil {
		last = summary.LastMessage.Text
		if summary.LastMessage.Pending() {
			last += " (Sending...)"
		}
	}
	if stale != nil {
		last += " (offline)"
	}
	return last
}
