// plugins/imap.go

package plugins

import (
	"context"
	"fmt"
	"path"
	"sort"

	"go.uber.org/zap"

	"github.com/tluyben/dun/logging"
	"github.com/tluyben/dun/mail"
	"github.com/tluyben/dun/plugin"
	"github.com/tluyben/dun/types"
)

type IMAPFetchParams struct {
	Folder string
	Limit  int
}

type IMAPOrganizeParams struct {
	Folder string
	Prefix string
	Limit  int
}

type imapFetch struct{}

type imapOrganize struct{}

func init() {
	registerBuiltin(imapFetch{})
	registerBuiltin(imapOrganize{})
}

func (imapFetch) Info() types.HandlerInfo {
	return types.HandlerInfo{
		Name:        "imap_fetch",
		Description: "List the newest messages of a mail folder with subject, sender and date",
		Input: []types.Property{
			{Name: "folder", Type: "string"},
			{Name: "limit", Type: "number"},
		},
		Output: []types.Property{
			{Name: "folder", Type: "string"},
			{Name: "messages", Type: "array"},
		},
	}
}

func (imapFetch) Execute(ctx context.Context, env *plugin.Env, params map[string]string) (map[string]interface{}, error) {
	limit, err := intParam(params, "limit", 5)
	if err != nil {
		return nil, err
	}
	p := IMAPFetchParams{Folder: stringParam(params, "folder", defaultFolder(env)), Limit: limit}

	mb, err := openMailbox(ctx, env)
	if err != nil {
		return nil, err
	}
	defer mb.Close()

	messages, err := FetchLatest(mb, p)
	if err != nil {
		return nil, err
	}
	env.Logger.Info("fetched messages", zap.String("folder", p.Folder), zap.Int("count", len(messages)))
	return map[string]interface{}{"folder": p.Folder, "messages": messages}, nil
}

func FetchLatest(mb mail.Mailbox, p IMAPFetchParams) ([]mail.Message, error) {
	if p.Limit <= 0 {
		return nil, fmt.Errorf("invalid input: limit must be positive")
	}
	return mb.Latest(p.Folder, p.Limit)
}

func (imapOrganize) Info() types.HandlerInfo {
	return types.HandlerInfo{
		Name:        "imap_organize",
		Description: "Move messages of a mail folder into year/month sub-folders by message date",
		Input: []types.Property{
			{Name: "folder", Type: "string"},
			{Name: "prefix", Type: "string"},
			{Name: "limit", Type: "number"},
		},
		Output: []types.Property{
			{Name: "moved", Type: "object"},
			{Name: "total", Type: "number"},
		},
	}
}

func (imapOrganize) Execute(ctx context.Context, env *plugin.Env, params map[string]string) (map[string]interface{}, error) {
	limit, err := intParam(params, "limit", 100)
	if err != nil {
		return nil, err
	}
	folder := stringParam(params, "folder", defaultFolder(env))
	p := IMAPOrganizeParams{
		Folder: folder,
		Prefix: stringParam(params, "prefix", folder),
		Limit:  limit,
	}

	mb, err := openMailbox(ctx, env)
	if err != nil {
		return nil, err
	}
	defer mb.Close()

	moved, err := Organize(ctx, env.Logger, mb, p)
	if err != nil {
		return nil, err
	}
	total := 0
	for _, n := range moved {
		total += n
	}
	return map[string]interface{}{"moved": moved, "total": total}, nil
}

// Organize moves the newest p.Limit messages of p.Folder into
// p.Prefix/YYYY/MM folders. Messages without a date stay where they are.
func Organize(ctx context.Context, logger *zap.Logger, mb mail.Mailbox, p IMAPOrganizeParams) (map[string]int, error) {
	logger = logging.OrNop(logger)
	if p.Limit <= 0 {
		return nil, fmt.Errorf("invalid input: limit must be positive")
	}
	messages, err := mb.Latest(p.Folder, p.Limit)
	if err != nil {
		return nil, err
	}

	groups := make(map[string][]uint32)
	for _, m := range messages {
		if m.Date.IsZero() {
			continue
		}
		dest := path.Join(p.Prefix, m.Date.Format("2006"), m.Date.Format("01"))
		groups[dest] = append(groups[dest], m.UID)
	}

	dests := make([]string, 0, len(groups))
	for d := range groups {
		dests = append(dests, d)
	}
	sort.Strings(dests)

	moved := make(map[string]int, len(groups))
	for _, dest := range dests {
		if err := ctx.Err(); err != nil {
			return moved, err
		}
		if err := mb.EnsureFolder(dest); err != nil {
			return moved, err
		}
		if err := mb.Move(p.Folder, groups[dest], dest); err != nil {
			return moved, err
		}
		moved[dest] = len(groups[dest])
		logger.Info("moved messages", zap.String("folder", dest), zap.Int("count", len(groups[dest])))
	}
	return moved, nil
}

func defaultFolder(env *plugin.Env) string {
	if env.MailFolder != "" {
		return env.MailFolder
	}
	return "INBOX"
}

func openMailbox(ctx context.Context, env *plugin.Env) (mail.Mailbox, error) {
	if env.OpenMailbox == nil {
		return nil, fmt.Errorf("mail is not configured: set IMAP_SERVER, IMAP_EMAIL and IMAP_PASSWORD")
	}
	return env.OpenMailbox(ctx)
}
