// pkg/interaction/prompt.go

package interaction

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/CodeMonkeyCybersecurity/kvault/pkg/kv_err"
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/logger"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"golang.org/x/term"
)

// Prompter reads answers from in and writes prompts to out.
type Prompter struct {
	in     *bufio.Reader
	out    io.Writer
	log    *otelzap.Logger
	fd     int
	isTerm bool
}

// NewPrompter wraps in and out. Hidden input is only used when in is a
// terminal file.
func NewPrompter(in io.Reader, out io.Writer, log *otelzap.Logger) *Prompter {
	if log == nil {
		log = logger.Nop()
	}
	p := &Prompter{in: bufio.NewReader(in), out: out, log: log, fd: -1}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.fd = int(f.Fd())
		p.isTerm = true
	}
	return p
}

// IsTerminal reports whether hidden input is available.
func (p *Prompter) IsTerminal() bool { return p.isTerm }

// Printf writes to the prompt stream.
func (p *Prompter) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(p.out, format, args...)
}

// ReadLine prompts with label and returns a trimmed line of input. End of
// input with nothing read is reported as kv_err.ErrUserCancelled.
func (p *Prompter) ReadLine(ctx context.Context, label string) (string, error) {
	p.log.Ctx(ctx).Debug("Prompting user for input", zap.String("label", label))
	p.Printf("%s: ", label)

	text, err := p.in.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			p.log.Ctx(ctx).Error("Failed to read user input", zap.Error(err))
			return "", err
		}
		if text == "" {
			p.Printf("\n")
			return "", kv_err.ErrUserCancelled
		}
	}
	return sanitize(strings.TrimSpace(text)), nil
}

// PromptValidated asks until validate accepts the answer.
func (p *Prompter) PromptValidated(ctx context.Context, label string, validate func(string) error) (string, error) {
	for {
		input, err := p.ReadLine(ctx, label)
		if err != nil {
			return "", err
		}
		if verr := validate(input); verr != nil {
			p.log.Ctx(ctx).Debug("Input rejected", zap.String("label", label), zap.Error(verr))
			p.Printf("  %s\n", verr)
			continue
		}
		return input, nil
	}
}

// PromptSelect displays numbered options and returns the chosen index.
func (p *Prompter) PromptSelect(ctx context.Context, prompt string, options []string) (int, error) {
	if len(options) == 0 {
		return -1, kv_err.NewExpectedError(errors.New("nothing to choose from"))
	}
	p.log.Ctx(ctx).Debug("Prompting selection", zap.String("prompt", prompt), zap.Int("num_options", len(options)))

	p.Printf("%s\n", prompt)
	for i, option := range options {
		p.Printf("  %d) %s\n", i+1, option)
	}

	for {
		choice, err := p.ReadLine(ctx, EnterChoicePrompt)
		if err != nil {
			return -1, err
		}
		idx, convErr := strconv.Atoi(choice)
		if convErr == nil && idx >= 1 && idx <= len(options) {
			p.log.Ctx(ctx).Debug("User selected option", zap.Int("index", idx), zap.String("value", options[idx-1]))
			return idx - 1, nil
		}
		p.log.Ctx(ctx).Debug("Invalid selection", zap.String("input", choice))
		p.Printf("Invalid selection. Please try again.\n")
	}
}

// PromptYesNo asks a yes/no question. Empty or unrecognised answers take the
// default.
func (p *Prompter) PromptYesNo(ctx context.Context, prompt string, defaultYes bool) (bool, error) {
	defPrompt := DefaultYesPrompt
	if !defaultYes {
		defPrompt = DefaultNoPrompt
	}
	input, err := p.ReadLine(ctx, fmt.Sprintf("%s [%s]", prompt, defPrompt))
	if err != nil {
		return false, err
	}
	if answer, ok := NormalizeYesNoInput(input); ok {
		return answer, nil
	}
	p.log.Ctx(ctx).Debug("Default applied", zap.String("prompt", prompt), zap.Bool("default_yes", defaultYes))
	return defaultYes, nil
}

// PromptSecret reads a value without echo on a terminal, and as a plain
// line otherwise. Input already buffered from an earlier prompt (pasted
// lines) is consumed first, since reading the descriptor would skip it.
func (p *Prompter) PromptSecret(ctx context.Context, label string) (string, error) {
	if !p.isTerm || p.in.Buffered() > 0 {
		return p.ReadLine(ctx, label)
	}

	p.Printf("%s: ", label)
	raw, err := term.ReadPassword(p.fd)
	p.Printf("\n")
	if err != nil {
		p.log.Ctx(ctx).Error("Failed to read secret input", zap.Error(err))
		return "", err
	}
	secret := strings.TrimSpace(string(raw))
	if secret == "" {
		p.log.Ctx(ctx).Debug("No input received for secret", zap.String("label", label))
	}
	return secret, nil
}
