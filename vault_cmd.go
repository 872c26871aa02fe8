package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/tluyben/dun/vault"
)

func vaultCommand() *cli.Command {
	return &cli.Command{
		Name:  "vault",
		Usage: "Bitwarden vault bootstrap and credential export",
		Subcommands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Configure the server, log in, unlock and store the session token",
				Action: vaultLogin,
			},
			{
				Name:  "populate",
				Usage: "Create the seed entries in the vault",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "social", Usage: "Create the social media entries instead"},
				},
				Action: vaultPopulate,
			},
			{
				Name:      "show",
				Usage:     "Print the credentials of the named entries (social media entries by default)",
				ArgsUsage: "[name...]",
				Action:    vaultShow,
			},
			{
				Name:   "env",
				Usage:  "Print export lines for the configured credential variables",
				Action: vaultEnv,
			},
			{
				Name:      "check",
				Usage:     "Verify that an entry exists with a username and a password",
				ArgsUsage: "[name]",
				Action:    vaultCheck,
			},
			{
				Name:   "keygen",
				Usage:  "Create the age identity used to encrypt the session file",
				Action: vaultKeygen,
			},
		},
	}
}

func sessionStore() vault.SessionStore {
	return vault.SessionStore{Path: cfg.Vault.SessionFile, Identity: cfg.Vault.SessionIdentity}
}

// unlockedClient returns a client carrying the stored session token.
func unlockedClient() (*vault.Client, error) {
	session, err := sessionStore().Load()
	if err != nil {
		return nil, err
	}
	return vault.NewClient(cfg.Vault.Binary, vault.WithLogger(logger), vault.WithSession(session)), nil
}

func vaultLogin(c *cli.Context) error {
	if cfg.Vault.Email == "" || cfg.Vault.Password == "" {
		return fmt.Errorf("BW_EMAIL and BW_PASSWORD must be set in the environment or .env")
	}
	client := vault.NewClient(cfg.Vault.Binary, vault.WithLogger(logger))

	fmt.Printf("Configuring bw for server %s\n", cfg.Vault.Server)
	if err := client.ConfigureServer(c.Context, cfg.Vault.Server); err != nil {
		return err
	}
	fmt.Printf("Logging in as %s\n", cfg.Vault.Email)
	if err := client.Login(c.Context, cfg.Vault.Email, cfg.Vault.Password); err != nil {
		return fmt.Errorf("bw login failed, check that the user exists and the password is correct: %w", err)
	}
	session, err := client.Unlock(c.Context, cfg.Vault.Password)
	if err != nil {
		return err
	}
	if err := sessionStore().Save(session); err != nil {
		return err
	}
	fmt.Printf("Session stored in %s\n", cfg.Vault.SessionFile)
	return nil
}

func vaultPopulate(c *cli.Context) error {
	client, err := unlockedClient()
	if err != nil {
		return err
	}
	seeds, err := vault.LoadSeeds(cfg.Vault.SeedsFile)
	if err != nil {
		return err
	}
	group := seeds.Entries
	if c.Bool("social") {
		group = seeds.Social
	}

	report := client.Populate(c.Context, vault.VaultEntries(group))
	for _, name := range report.Created {
		fmt.Printf("Added: %s\n", name)
	}
	for _, f := range report.Failed {
		fmt.Printf("Error adding %s: %v\n", f.Name, f.Err)
	}
	if !report.OK() {
		return fmt.Errorf("%d of %d entries could not be added", len(report.Failed), len(group))
	}
	return nil
}

func vaultShow(c *cli.Context) error {
	client, err := unlockedClient()
	if err != nil {
		return err
	}
	names := c.Args().Slice()
	if len(names) == 0 {
		seeds, err := vault.LoadSeeds(cfg.Vault.SeedsFile)
		if err != nil {
			return err
		}
		names = vault.Names(seeds.Social)
	}

	for _, name := range names {
		entries, err := client.Search(c.Context, name)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Printf("No data for: %s\n", name)
			continue
		}
		e := entries[0]
		fmt.Printf("%s | Login: %s | Password: %s\n", titleCase(name), e.Username, e.Password)
	}
	return nil
}

func vaultEnv(c *cli.Context) error {
	client, err := unlockedClient()
	if err != nil {
		return err
	}
	env, err := client.ExportEnv(c.Context, cfg.Vault.EnvMap)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("export %s=%s\n", k, shellQuote(env[k]))
	}
	return nil
}

func vaultCheck(c *cli.Context) error {
	name := c.Args().First()
	if name == "" {
		name = "intranet"
	}
	client, err := unlockedClient()
	if err != nil {
		return err
	}
	entry, err := client.Check(c.Context, name)
	if err != nil {
		return err
	}
	fmt.Printf("Login: %s\nPassword: %s\n", entry.Username, strings.Repeat("*", len(entry.Password)))
	return nil
}

func vaultKeygen(c *cli.Context) error {
	if cfg.Vault.SessionIdentity == "" {
		return fmt.Errorf("set BW_SESSION_IDENTITY to the identity file path first")
	}
	if err := vault.GenerateIdentity(cfg.Vault.SessionIdentity); err != nil {
		return err
	}
	fmt.Printf("Identity written to %s; run `dun vault login` to store an encrypted session\n", cfg.Vault.SessionIdentity)
	return nil
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
