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

// Seams replaced in tests so commands never touch the terminal.
var (
	termReadPassword = term.ReadPassword
	readLine         = askLine
	readSecret       = askSecret
)

// askLine writes "label: " and returns the next line without surrounding
// whitespace. A final line without a newline is accepted.
func askLine(r *bufio.Reader, w io.Writer, label string) (string, error) {
	fmt.Fprintf(w, "%s: ", label)
	line, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// askSecret reads a line from the terminal with echo off. Callers wipe the
// result.
func askSecret(w io.Writer, label string) ([]byte, error) {
	fmt.Fprintf(w, "%s: ", label)
	secret, err := termReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	return secret, err
}

// confirm asks a yes/no question; only "y" and "yes" count as consent.
func confirm(r *bufio.Reader, w io.Writer, question string) (bool, error) {
	answer, err := readLine(r, w, question+" [y/N]")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
