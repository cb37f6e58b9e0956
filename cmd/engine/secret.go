package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"internship-engine/internal/secrets"
)

type SecretCmd struct {
	Set    SecretSetCmd    `cmd:"" help:"Store the IMAP password for the configured account"`
	Delete SecretDeleteCmd `cmd:"" help:"Remove the stored IMAP password"`
}

type SecretSetCmd struct {
	Stdin bool `help:"Read the password from stdin instead of prompting"`
}

func (c *SecretSetCmd) Run(g *Globals) error {
	_, cfg, err := loadConfig(g)
	if err != nil {
		return err
	}
	if cfg.Email.Username == "" || cfg.Email.IMAPHost == "" {
		return errors.New("set email.imap_host and email.username in config.yml first")
	}
	st, err := secrets.Open(cfg)
	if err != nil {
		return err
	}

	var pw string
	if c.Stdin || !term.IsTerminal(int(os.Stdin.Fd())) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("failed to read password: %w", err)
		}
		pw = strings.TrimRight(line, "\r\n")
	} else {
		fmt.Printf("IMAP password for %s: ", cfg.Email.Username)
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		pw = string(b)
	}
	if pw == "" {
		return errors.New("password is required")
	}

	account := secrets.IMAPAccount(cfg)
	if err := st.SetPassword(account, pw); err != nil {
		return fmt.Errorf("failed to store password: %w", err)
	}
	fmt.Printf("Stored password for %s\n", account)
	return nil
}

type SecretDeleteCmd struct{}

func (SecretDeleteCmd) Run(g *Globals) error {
	_, cfg, err := loadConfig(g)
	if err != nil {
		return err
	}
	st, err := secrets.Open(cfg)
	if err != nil {
		return err
	}
	return st.DeletePassword(secrets.IMAPAccount(cfg))
}
