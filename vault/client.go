// Package vault drives the Bitwarden `bw` command-line client: server
// configuration, login and unlock, item search and creation, and exporting
// credentials into environment variables.
package vault

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/tluyben/dun/types"
)

var (
	ErrNotFound  = errors.New("no vault item matches")
	ErrNoSession = errors.New("vault is locked: no session token")
)

// loginItemType is the bw item type for logins.
const loginItemType = 1

// Runner runs the bw binary with args, feeding stdin, and returns stdout.
type Runner func(ctx context.Context, stdin []byte, args ...string) ([]byte, error)

type Client struct {
	Binary  string
	Session string

	run    Runner
	logger *zap.Logger
}

type Option func(*Client)

func WithRunner(r Runner) Option { return func(c *Client) { c.run = r } }

func WithLogger(l *zap.Logger) Option { return func(c *Client) { c.logger = l } }

func WithSession(s string) Option { return func(c *Client) { c.Session = s } }

func NewClient(binary string, opts ...Option) *Client {
	if binary == "" {
		binary = "bw"
	}
	c := &Client{Binary: binary, logger: zap.NewNop()}
	c.run = c.execRunner
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) execRunner(ctx context.Context, stdin []byte, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, c.Binary, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = strings.TrimSpace(stdout.String())
		}
		return stdout.Bytes(), fmt.Errorf("%s %s: %w: %s", c.Binary, args[0], err, msg)
	}
	return stdout.Bytes(), nil
}

// ConfigureServer points the CLI at a self-hosted server.
func (c *Client) ConfigureServer(ctx context.Context, url string) error {
	c.logger.Info("configuring vault server", zap.String("server", url))
	_, err := c.run(ctx, nil, "config", "server", url)
	return err
}

// Login authenticates email. Being logged in already is not an error.
func (c *Client) Login(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return fmt.Errorf("invalid input: email and password are required")
	}
	c.logger.Info("logging in to vault", zap.String("email", email))
	_, err := c.run(ctx, nil, "login", email, password)
	if err != nil && strings.Contains(err.Error(), "already logged in") {
		c.logger.Info("vault already logged in", zap.String("email", email))
		return nil
	}
	return err
}

// Unlock unlocks the vault and keeps the returned session token on c.
func (c *Client) Unlock(ctx context.Context, password string) (string, error) {
	out, err := c.run(ctx, []byte(password), "unlock", "--raw")
	if err != nil {
		return "", err
	}
	session := strings.TrimSpace(string(out))
	if session == "" {
		return "", fmt.Errorf("bw unlock returned an empty session token")
	}
	c.Session = session
	return session, nil
}

// Search returns every login item matching term. No match is an empty
// slice, not an error.
func (c *Client) Search(ctx context.Context, term string) ([]types.VaultEntry, error) {
	if c.Session == "" {
		return nil, ErrNoSession
	}
	out, err := c.run(ctx, nil, "list", "items", "--search", term, "--session", c.Session)
	if err != nil {
		return nil, err
	}
	return parseItems(out)
}

func parseItems(out []byte) ([]types.VaultEntry, error) {
	out = bytes.TrimSpace(out)
	if len(out) == 0 {
		return []types.VaultEntry{}, nil
	}
	if !gjson.ValidBytes(out) {
		return nil, fmt.Errorf("bw list returned invalid JSON")
	}
	parsed := gjson.ParseBytes(out)
	if !parsed.IsArray() {
		return nil, fmt.Errorf("bw list returned %s, want an array", parsed.Type)
	}

	entries := []types.VaultEntry{}
	parsed.ForEach(func(_, item gjson.Result) bool {
		uri := item.Get("login.uris.0.uri").String()
		if uri == "" {
			uri = item.Get("login.uri").String()
		}
		entries = append(entries, types.VaultEntry{
			Name:     item.Get("name").String(),
			Username: item.Get("login.username").String(),
			Password: item.Get("login.password").String(),
			URI:      uri,
		})
		return true
	})
	return entries, nil
}

// Lookup returns the first item matching term.
func (c *Client) Lookup(ctx context.Context, term string) (*types.VaultEntry, error) {
	entries, err := c.Search(ctx, term)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w %q", ErrNotFound, term)
	}
	return &entries[0], nil
}

// Check looks term up and requires both a username and a password.
func (c *Client) Check(ctx context.Context, term string) (*types.VaultEntry, error) {
	entry, err := c.Lookup(ctx, term)
	if err != nil {
		return nil, err
	}
	if entry.Username == "" {
		return entry, fmt.Errorf("vault item %q has no username", term)
	}
	if entry.Password == "" {
		return entry, fmt.Errorf("vault item %q has no password", term)
	}
	return entry, nil
}

type bwURI struct {
	URI string `json:"uri"`
}

type bwLogin struct {
	Username string  `json:"username"`
	Password string  `json:"password"`
	URIs     []bwURI `json:"uris,omitempty"`
}

type bwItem struct {
	Type  int     `json:"type"`
	Name  string  `json:"name"`
	Login bwLogin `json:"login"`
}

// EncodeItem renders entry as the base64 item JSON `bw create item` reads.
func EncodeItem(entry types.VaultEntry) (string, error) {
	item := bwItem{
		Type: loginItemType,
		Name: entry.Name,
		Login: bwLogin{
			Username: entry.Username,
			Password: entry.Password,
		},
	}
	if entry.URI != "" {
		item.Login.URIs = []bwURI{{URI: entry.URI}}
	}
	data, err := json.Marshal(item)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// Create stores entry as a new login item.
func (c *Client) Create(ctx context.Context, entry types.VaultEntry) error {
	if c.Session == "" {
		return ErrNoSession
	}
	if entry.Name == "" {
		return fmt.Errorf("invalid input: vault item needs a name")
	}
	encoded, err := EncodeItem(entry)
	if err != nil {
		return fmt.Errorf("error encoding vault item %s: %w", entry.Name, err)
	}
	_, err = c.run(ctx, []byte(encoded), "create", "item", "--session", c.Session)
	return err
}

type PopulateFailure struct {
	Name string
	Err  error
}

type PopulateReport struct {
	Created []string
	Failed  []PopulateFailure
}

func (r PopulateReport) OK() bool { return len(r.Failed) == 0 }

// Populate creates entries one by one. A failed entry is recorded and the
// rest are still attempted.
func (c *Client) Populate(ctx context.Context, entries []types.VaultEntry) PopulateReport {
	var report PopulateReport
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			report.Failed = append(report.Failed, PopulateFailure{Name: entry.Name, Err: err})
			continue
		}
		if err := c.Create(ctx, entry); err != nil {
			c.logger.Error("error adding vault item", zap.String("name", entry.Name), zap.Error(err))
			report.Failed = append(report.Failed, PopulateFailure{Name: entry.Name, Err: err})
			continue
		}
		c.logger.Info("added vault item", zap.String("name", entry.Name))
		report.Created = append(report.Created, entry.Name)
	}
	return report
}

// ExportEnv resolves mapping (environment variable to search term) into
// values: *_USER variables get the username, *_PASS variables the
// password. Terms without a match are left out.
func (c *Client) ExportEnv(ctx context.Context, mapping map[string]string) (map[string]string, error) {
	keys := make([]string, 0, len(mapping))
	for k := range mapping {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	found := make(map[string]*types.VaultEntry)
	env := make(map[string]string)
	for _, key := range keys {
		term := mapping[key]
		entry, seen := found[term]
		if !seen {
			var err error
			entry, err = c.Lookup(ctx, term)
			if errors.Is(err, ErrNotFound) {
				c.logger.Warn("no vault item for variable", zap.String("variable", key), zap.String("term", term))
				entry = nil
			} else if err != nil {
				return nil, err
			}
			found[term] = entry
		}
		if entry == nil {
			continue
		}

		switch {
		case strings.HasSuffix(key, "_USER") && entry.Username != "":
			env[key] = entry.Username
		case strings.HasSuffix(key, "_PASS") && entry.Password != "":
			env[key] = entry.Password
		}
	}
	return env, nil
}
