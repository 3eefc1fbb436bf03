package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"omnigen/internal/models"
	"omnigen/internal/service/chat"
)

const chatLongDesc string = `Chat with the text model in an interactive session.

Replies are rendered as markdown. Type /reset to start over and /exit
(or Ctrl-D) to quit.

Examples:
  omnigen chat
  omnigen chat --raw`

const chatShortDesc string = "Interactive chat session"

var (
	promptStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	noticeStyle = lipgloss.NewStyle().Faint(true)
)

type chatCommander struct {
	g   *globals
	raw bool
}

func newChatCmd(g *globals) *cobra.Command {
	cmder := &chatCommander{g: g}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd)
		},
	}

	cmd.Flags().BoolVar(&cmder.raw, "raw", false, "Stream plain text instead of rendering markdown")

	return cmd
}

func (c *chatCommander) run(ctx context.Context, cmd *cobra.Command) error {
	a, err := newApp(ctx, c.g, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	r := &repl{chat: a.chat, in: cmd.InOrStdin(), out: cmd.OutOrStdout()}
	if !c.raw {
		r.render, err = markdownRenderer(os.Stdout)
		if err != nil {
			return err
		}
	}
	return r.run(ctx)
}

// markdownRenderer renders with glamour, wrapped to the terminal width.
func markdownRenderer(out *os.File) (func(string) (string, error), error) {
	width := 100
	if w, _, err := term.GetSize(int(out.Fd())); err == nil && w > 0 {
		width = w
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, fmt.Errorf("create markdown renderer: %w", err)
	}
	return renderer.Render, nil
}

// repl drives one chat session over a line-oriented reader. With a nil
// render the reply is streamed as it arrives.
type repl struct {
	chat   *chat.Service
	in     io.Reader
	out    io.Writer
	render func(string) (string, error)

	sessionID string
}

func (r *repl) run(ctx context.Context) error {
	if err := r.start(ctx); err != nil {
		return err
	}
	scanner := bufio.NewScanner(r.in)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for {
		fmt.Fprint(r.out, promptStyle.Render("you> "))
		if !scanner.Scan() {
			fmt.Fprintln(r.out)
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/reset":
			if err := r.chat.Reset(ctx, r.sessionID); err != nil {
				return err
			}
			if err := r.start(ctx); err != nil {
				return err
			}
			continue
		}
		if err := r.turn(ctx, line); err != nil {
			return err
		}
	}
}

func (r *repl) start(ctx context.Context) error {
	id, messages, err := r.chat.NewSession(ctx)
	if err != nil {
		return fmt.Errorf("start chat session: %w", err)
	}
	r.sessionID = id
	for _, msg := range messages {
		r.print(msg)
	}
	return nil
}

func (r *repl) turn(ctx context.Context, prompt string) error {
	written := 0
	var onChunk func(string) error
	if r.render == nil {
		onChunk = func(text string) error {
			if len(text) > written {
				fmt.Fprint(r.out, text[written:])
				written = len(text)
			}
			return nil
		}
	}
	reply, err := r.chat.Send(ctx, r.sessionID, prompt, onChunk)
	if reply == nil {
		return err
	}
	if r.render == nil && !reply.IsError {
		// Only the empty-reply placeholder was never streamed.
		if written == 0 {
			fmt.Fprint(r.out, reply.Text)
		}
		fmt.Fprintln(r.out)
		return nil
	}
	if written > 0 {
		fmt.Fprintln(r.out)
	}
	r.print(reply)
	return nil
}

func (r *repl) print(msg *models.ChatMessage) {
	if msg.IsError {
		fmt.Fprintln(r.out, errorStyle.Render(msg.Text))
		return
	}
	if msg.ID == models.WelcomeMessageID {
		fmt.Fprintln(r.out, noticeStyle.Render(msg.Text))
		return
	}
	if r.render == nil {
		fmt.Fprintln(r.out, msg.Text)
		return
	}
	out, err := r.render(msg.Text)
	if err != nil {
		fmt.Fprintln(r.out, msg.Text)
		return
	}
	fmt.Fprint(r.out, out)
}
