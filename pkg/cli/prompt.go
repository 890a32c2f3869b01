package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompter is used to ask the user for confirmation or a line of input.
type Prompter interface {
	// Confirm asks the user a yes/no question and returns true if they say yes.
	Confirm(message string) (bool, error)
	// Ask reads one line of input.
	Ask(message string) (string, error)
}

// StdioPrompter implements Prompter using a reader and a writer.
type StdioPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewStdioPrompter reads answers from in and writes questions to out.
func NewStdioPrompter(in io.Reader, out io.Writer) *StdioPrompter {
	return &StdioPrompter{in: bufio.NewReader(in), out: out}
}

// Confirm asks a yes/no question.
func (p *StdioPrompter) Confirm(message string) (bool, error) {
	response, err := p.Ask(message + " [y/n]")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(response) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// Ask reads one trimmed line.
func (p *StdioPrompter) Ask(message string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", message)
	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// terminalPassword reads a password from the controlling terminal without echo.
func terminalPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("password input needs a terminal")
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
