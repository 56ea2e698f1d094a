package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// promptPassword asks for a password twice on in and returns it once both
// entries match. Prompts are written to out.
func promptPassword(in io.Reader, out io.Writer) (string, error) {
	scanner := bufio.NewScanner(in)

	fmt.Fprint(out, "Enter password: ")
	if !scanner.Scan() {
		return "", errors.New("no password entered")
	}
	password := strings.TrimRight(scanner.Text(), "\r")

	fmt.Fprint(out, "Repeat password: ")
	if !scanner.Scan() {
		return "", errors.New("no confirmation entered")
	}
	confirm := strings.TrimRight(scanner.Text(), "\r")
	fmt.Fprintln(out)

	if password == "" {
		return "", errors.New("password must not be empty")
	}
	if password != confirm {
		return "", errors.New("passwords do not match")
	}
	return password, nil
}
