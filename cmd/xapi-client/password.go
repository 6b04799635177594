package main

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// fallbackPassword is consulted when no layer supplied a password: the
// environment first, then a terminal prompt. It returns an empty string when
// neither is available.
func fallbackPassword(prompt io.Writer) (string, error) {
	if pw := os.Getenv(passwordEnv); pw != "" {
		return pw, nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", nil
	}

	fmt.Fprint(prompt, "Password: ")
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(prompt)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}
