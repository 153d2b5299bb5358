package main

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/EternisAI/botping/internal/auth"
)

// readList reads one entry per line, skipping blank lines and # comments.
// A missing file yields an empty list.
func readList(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var entries []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entries = append(entries, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return entries, nil
}

// validateHandles reports every handle that is not of the form "@...bot".
func validateHandles(handles []string) error {
	var errs []error
	for _, h := range handles {
		switch {
		case !strings.HasPrefix(h, "@"):
			errs = append(errs, fmt.Errorf("invalid bot username `%s`: must start with `@`", h))
		case !strings.HasSuffix(strings.ToLower(h), "bot"):
			errs = append(errs, fmt.Errorf("invalid bot username `%s`: must end with `bot`", h))
		}
	}
	return errors.Join(errs...)
}

func loadHandles(cfg AgentsConfig) ([]string, error) {
	fromFile, err := readList(cfg.File)
	if err != nil {
		return nil, err
	}

	handles := make([]string, 0, len(cfg.Allowed)+len(fromFile))
	for _, list := range [][]string{cfg.Allowed, fromFile} {
		for _, h := range list {
			if h = strings.TrimSpace(h); h != "" {
				handles = append(handles, h)
			}
		}
	}

	if err := validateHandles(handles); err != nil {
		return nil, err
	}
	return handles, nil
}

// loadTokenHashes merges configured bcrypt hashes with the hashed contents
// of the plain tokens file.
func loadTokenHashes(cfg AuthConfig) ([]string, error) {
	plain, err := readList(cfg.TokensFile)
	if err != nil {
		return nil, err
	}

	hashed, err := auth.HashTokens(plain)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.TokensFile, err)
	}

	return append(append([]string{}, cfg.TokenHashes...), hashed...), nil
}
