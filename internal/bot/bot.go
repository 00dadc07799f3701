// Package bot is the chat interface: a command router over Telegram
// long polling, with multi-step conversation forms for data entry.
package bot

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sentinelvps/sentinel/internal/billing"
	"github.com/sentinelvps/sentinel/internal/fleet"
	"github.com/sentinelvps/sentinel/internal/monitor"
	"github.com/sentinelvps/sentinel/internal/settings"
	"github.com/sentinelvps/sentinel/internal/sshx"
	"github.com/sentinelvps/sentinel/internal/telegram"
)

const pollTimeout = 30

// API is the Telegram surface the bot consumes. Satisfied by
// *telegram.Client.
type API interface {
	SendMessage(ctx context.Context, chatID int64, threadID int, text string) error
	GetUpdates(ctx context.Context, offset int64, timeoutSec int) ([]telegram.Update, error)
}

// Remote runs commands on fleet servers. Satisfied by *sshx.Executor.
type Remote interface {
	Execute(ctx context.Context, target sshx.Target, command string, timeout time.Duration) sshx.Result
	CheckConnection(ctx context.Context, target sshx.Target) bool
	ChangePassword(ctx context.Context, target sshx.Target, newPassword string) (bool, string)
	Maintain(ctx context.Context, target sshx.Target, component string) sshx.Result
}

// Collector is the on-demand monitoring surface. Satisfied by
// *monitor.Service.
type Collector interface {
	CollectAll(ctx context.Context) (map[int64]*monitor.Snapshot, error)
	CollectServer(ctx context.Context, id int64) (*monitor.Snapshot, error)
	CachedSnapshot(id int64) *monitor.Snapshot
}

// Bot routes incoming chat commands to handlers.
type Bot struct {
	api       API
	remote    Remote
	collector Collector
	fleet     *fleet.Store
	billing   *billing.Store
	settings  *settings.Store
	adminIDs  map[int64]bool
	logger    *zap.Logger
	forms     *forms
	now       func() time.Time
}

// New creates the bot. adminIDs is the static allow-list from
// configuration; the admins table extends it at runtime.
func New(api API, remote Remote, collector Collector, fleetStore *fleet.Store, billingStore *billing.Store, settingsStore *settings.Store, adminIDs []int64, logger *zap.Logger) *Bot {
	ids := make(map[int64]bool, len(adminIDs))
	for _, id := range adminIDs {
		ids[id] = true
	}
	return &Bot{
		api:       api,
		remote:    remote,
		collector: collector,
		fleet:     fleetStore,
		billing:   billingStore,
		settings:  settingsStore,
		adminIDs:  ids,
		logger:    logger,
		forms:     newForms(),
		now:       time.Now,
	}
}

// Run long-polls for updates until the context is canceled.
func (b *Bot) Run(ctx context.Context) error {
	var offset int64
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		updates, err := b.api.GetUpdates(ctx, offset, pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.logger.Warn("getUpdates failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(3 * time.Second):
			}
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			b.HandleUpdate(ctx, u)
		}
	}
}

// HandleUpdate processes one incoming update. Exported for tests; Run
// is the production entry point.
func (b *Bot) HandleUpdate(ctx context.Context, u telegram.Update) {
	msg := u.Message
	if msg == nil || msg.From == nil || msg.Text == "" {
		return
	}

	logger := b.logger.With(
		zap.String("request_id", uuid.NewString()),
		zap.Int64("user_id", msg.From.ID),
		zap.Int64("chat_id", msg.Chat.ID),
	)

	ok, err := b.isAdmin(ctx, msg.From.ID)
	if err != nil {
		logger.Error("admin check failed", zap.Error(err))
		return
	}
	if !ok {
		logger.Warn("rejected non-admin", zap.String("text", msg.Text))
		b.reply(ctx, msg, "⛔ Not authorized.")
		return
	}

	key := formKey{ChatID: msg.Chat.ID, UserID: msg.From.ID}

	if strings.HasPrefix(msg.Text, "/") {
		b.dispatch(ctx, logger, msg, key)
		return
	}

	if f := b.forms.get(key); f != nil {
		b.handleFormInput(ctx, logger, msg, key, f)
	}
}

// isAdmin checks the static config allow-list first, then the admins
// table.
func (b *Bot) isAdmin(ctx context.Context, userID int64) (bool, error) {
	if b.adminIDs[userID] {
		return true, nil
	}
	return b.settings.IsAdmin(ctx, userID)
}

// dispatch routes one slash command. Starting any command abandons a
// form in progress.
func (b *Bot) dispatch(ctx context.Context, logger *zap.Logger, msg *telegram.Message, key formKey) {
	fields := strings.Fields(msg.Text)
	cmd := fields[0]
	// Strip the @botname suffix used in group chats.
	if i := strings.IndexByte(cmd, '@'); i > 0 {
		cmd = cmd[:i]
	}
	args := fields[1:]

	logger.Info("command", zap.String("cmd", cmd))

	if cmd != "/cancel" {
		b.forms.clear(key)
	}

	switch cmd {
	case "/start", "/help":
		b.cmdStart(ctx, msg)
	case "/cancel":
		b.cmdCancel(ctx, msg, key)
	case "/servers":
		b.cmdServers(ctx, msg)
	case "/server":
		b.cmdServer(ctx, msg, args)
	case "/monitor":
		b.cmdMonitor(ctx, msg)
	case "/addserver":
		b.cmdAddServer(ctx, msg, key)
	case "/editserver":
		b.cmdEditServer(ctx, msg, key, args)
	case "/delserver":
		b.cmdDelServer(ctx, msg, args)
	case "/exec":
		b.cmdExec(ctx, msg, key, args)
	case "/passwd":
		b.cmdPasswd(ctx, msg, key, args)
	case "/maintain":
		b.cmdMaintain(ctx, msg, args)
	case "/backup":
		b.cmdBackup(ctx, msg, args)
	case "/addpayment":
		b.cmdAddPayment(ctx, msg, key)
	case "/payments":
		b.cmdPayments(ctx, msg)
	case "/paid":
		b.cmdPaid(ctx, msg, args)
	case "/balance":
		b.cmdBalance(ctx, msg)
	case "/income":
		b.cmdOperation(ctx, msg, billing.OpIncome, args)
	case "/expense":
		b.cmdOperation(ctx, msg, billing.OpExpense, args)
	case "/admins":
		b.cmdAdmins(ctx, msg)
	case "/addadmin":
		b.cmdAddAdmin(ctx, msg, args)
	case "/deladmin":
		b.cmdDelAdmin(ctx, msg, args)
	case "/settopic":
		b.cmdSetTopic(ctx, msg, args)
	case "/notify":
		b.cmdNotify(ctx, msg, args)
	case "/logs":
		b.cmdLogs(ctx, msg)
	case "/status":
		b.cmdStatus(ctx, msg)
	default:
		b.reply(ctx, msg, "Unknown command. /help lists what I understand.")
	}
}

// reply sends into the same chat and topic thread the message came from.
func (b *Bot) reply(ctx context.Context, msg *telegram.Message, text string) {
	if err := b.api.SendMessage(ctx, msg.Chat.ID, msg.MessageThreadID, text); err != nil {
		b.logger.Error("reply failed", zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
	}
}

// logAction records a mutating admin operation in the audit table.
func (b *Bot) logAction(ctx context.Context, adminID int64, action, details string) {
	if err := b.settings.LogAction(ctx, adminID, action, details); err != nil {
		b.logger.Warn("action log write failed", zap.String("action", action), zap.Error(err))
	}
}
