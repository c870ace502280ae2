package token

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/paularlott/cli"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

// Commands returns the token subcommands
func Commands() []*cli.Command {
	return []*cli.Command{
		{
			Name:        "hash",
			Usage:       "Hash an API token for INVD_API_TOKEN",
			Description: "Prompt for a token and print its bcrypt hash. The server accepts the hash in place of the plain token",
			Flags: []cli.Flag{
				&cli.IntFlag{Name: "cost", Usage: "bcrypt cost", DefaultValue: bcrypt.DefaultCost},
			},
			Run: func(ctx context.Context, cmd *cli.Command) error {
				fd := int(os.Stdin.Fd())
				if !term.IsTerminal(fd) {
					return errors.New("stdin is not a terminal")
				}
				fmt.Fprint(os.Stderr, "Token: ")
				first, err := term.ReadPassword(fd)
				fmt.Fprintln(os.Stderr)
				if err != nil {
					return err
				}
				fmt.Fprint(os.Stderr, "Repeat: ")
				second, err := term.ReadPassword(fd)
				fmt.Fprintln(os.Stderr)
				if err != nil {
					return err
				}
				if string(first) != string(second) {
					return errors.New("tokens do not match")
				}

				hash, err := Hash(first, cmd.GetInt("cost"))
				if err != nil {
					return err
				}
				fmt.Println(hash)
				return nil
			},
		},
	}
}

// Hash returns the bcrypt hash of token
func Hash(token []byte, cost int) (string, error) {
	if len(token) == 0 {
		return "", errors.New("token is empty")
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return "", fmt.Errorf("cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	hash, err := bcrypt.GenerateFromPassword(token, cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
