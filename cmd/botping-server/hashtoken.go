package main

import (
	"fmt"
	"io"

	"github.com/EternisAI/botping/internal/auth"
)

// hashTokenCommand prints the bcrypt hash of a caller token for use in
// auth.token_hashes.
func hashTokenCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintln(stderr, "usage: botping-server hash-token <token>")
		return 2
	}

	token, err := auth.ParseToken(args[0])
	if err != nil {
		fmt.Fprintf(stderr, "invalid token: %v\n", err)
		return 1
	}

	hash, err := auth.HashToken(token)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	fmt.Fprintln(stdout, hash)
	return 0
}
