package credential

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

// Prompt asks for the password with a masked input when stdin is a
// terminal, and otherwise reads a single line from stdin so the tool can
// be driven from a pipe.
type Prompt struct {
	title      string
	reader     io.Reader
	isTerminal func() bool
	ask        func(ctx context.Context, title string) (string, error)
}

// NewPrompt creates a Prompt on os.Stdin.
func NewPrompt(title string) *Prompt {
	return &Prompt{
		title:  title,
		reader: os.Stdin,
		isTerminal: func() bool {
			return term.IsTerminal(int(os.Stdin.Fd()))
		},
		ask: askMasked,
	}
}

// Password prompts once per call.
func (p *Prompt) Password(ctx context.Context) (string, error) {
	var (
		pw  string
		err error
	)
	if p.isTerminal() {
		pw, err = p.ask(ctx, p.title)
	} else {
		pw, err = readLine(p.reader)
	}
	if err != nil {
		return "", err
	}
	if pw == "" {
		return "", errors.New("empty password")
	}
	return pw, nil
}

func askMasked(ctx context.Context, title string) (string, error) {
	var pw string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(title).
				EchoMode(huh.EchoModePassword).
				Value(&pw),
		),
	)
	if err := form.RunWithContext(ctx); err != nil {
		return "", fmt.Errorf("prompt cancelled: %w", err)
	}
	return pw, nil
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("reading password from stdin: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
