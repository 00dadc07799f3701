package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sentinelvps/sentinel/internal/settings"
	"github.com/sentinelvps/sentinel/internal/telegram"
)

// topicKeys maps the /settopic category names to setting keys.
var topicKeys = map[string]string{
	"monitoring": settings.KeyTopicMonitoring,
	"payments":   settings.KeyTopicPayments,
	"balance":    settings.KeyTopicBalance,
	"admin":      settings.KeyTopicAdmin,
}

// notifyKeys maps the /notify category names to switch keys.
var notifyKeys = map[string]string{
	"monitoring": settings.KeyMonitorEnabled,
	"payments":   settings.KeyPaymentNotify,
}

// primaryAdmin reports whether the account is in the static config
// allow-list. Only primary admins may manage the admin table.
func (b *Bot) primaryAdmin(userID int64) bool {
	return b.adminIDs[userID]
}

func (b *Bot) cmdAdmins(ctx context.Context, msg *telegram.Message) {
	admins, err := b.settings.ListAdmins(ctx)
	if err != nil {
		b.logger.Error("listing admins failed", zap.Error(err))
		b.reply(ctx, msg, "❌ Could not load the admin list.")
		return
	}

	var sb strings.Builder
	sb.WriteString("\U0001f465 <b>Admins</b>\n\n<b>Primary (config):</b>\n")
	for id := range b.adminIDs {
		fmt.Fprintf(&sb, "  \U0001f451 <code>%d</code>\n", id)
	}
	if len(admins) > 0 {
		sb.WriteString("\n<b>Added:</b>\n")
		for _, a := range admins {
			fmt.Fprintf(&sb, "  \U0001f464 <code>%d</code>", a.TelegramID)
			if a.Username != "" {
				fmt.Fprintf(&sb, " (@%s)", a.Username)
			}
			sb.WriteByte('\n')
		}
	}
	b.reply(ctx, msg, sb.String())
}

func (b *Bot) cmdAddAdmin(ctx context.Context, msg *telegram.Message, args []string) {
	if !b.primaryAdmin(msg.From.ID) {
		b.reply(ctx, msg, "⛔ Only a primary admin can manage admins.")
		return
	}
	if len(args) < 1 {
		b.reply(ctx, msg, "Usage: /addadmin &lt;telegram id&gt; [username]")
		return
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		b.reply(ctx, msg, "Telegram id must be a number.")
		return
	}
	username := ""
	if len(args) >= 2 {
		username = strings.TrimPrefix(args[1], "@")
	}

	if err := b.settings.AddAdmin(ctx, id, username); err != nil {
		b.logger.Error("adding admin failed", zap.Int64("target_id", id), zap.Error(err))
		b.reply(ctx, msg, "❌ Could not add the admin.")
		return
	}
	b.logAction(ctx, msg.From.ID, "addadmin", strconv.FormatInt(id, 10))
	b.reply(ctx, msg, fmt.Sprintf("✅ Admin <code>%d</code> added.", id))
}

func (b *Bot) cmdDelAdmin(ctx context.Context, msg *telegram.Message, args []string) {
	if !b.primaryAdmin(msg.From.ID) {
		b.reply(ctx, msg, "⛔ Only a primary admin can manage admins.")
		return
	}
	if len(args) < 1 {
		b.reply(ctx, msg, "Usage: /deladmin &lt;telegram id&gt;")
		return
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		b.reply(ctx, msg, "Telegram id must be a number.")
		return
	}
	if b.adminIDs[id] {
		b.reply(ctx, msg, "Primary admins come from the config file and cannot be removed here.")
		return
	}

	if err := b.settings.RemoveAdmin(ctx, id); err != nil {
		b.logger.Error("removing admin failed", zap.Int64("target_id", id), zap.Error(err))
		b.reply(ctx, msg, "❌ Could not remove the admin.")
		return
	}
	b.logAction(ctx, msg.From.ID, "deladmin", strconv.FormatInt(id, 10))
	b.reply(ctx, msg, fmt.Sprintf("✅ Admin <code>%d</code> removed.", id))
}

func (b *Bot) cmdSetTopic(ctx context.Context, msg *telegram.Message, args []string) {
	if len(args) < 2 {
		b.reply(ctx, msg, "Usage: /settopic &lt;monitoring|payments|balance|admin&gt; &lt;thread id&gt;")
		return
	}
	key, ok := topicKeys[args[0]]
	if !ok {
		b.reply(ctx, msg, fmt.Sprintf("Unknown topic %q.", args[0]))
		return
	}
	id, err := strconv.Atoi(args[1])
	if err != nil || id < 0 {
		b.reply(ctx, msg, "Thread id must be a non-negative number; 0 posts to the main thread.")
		return
	}

	if err := b.settings.Set(ctx, key, strconv.Itoa(id)); err != nil {
		b.logger.Error("saving topic setting failed", zap.String("key", key), zap.Error(err))
		b.reply(ctx, msg, "❌ Could not save the topic.")
		return
	}
	b.logAction(ctx, msg.From.ID, "settopic", fmt.Sprintf("%s=%d", args[0], id))
	b.reply(ctx, msg, fmt.Sprintf("✅ Topic for <b>%s</b> set to <code>%d</code>. Takes effect on the next restart.", args[0], id))
}

func (b *Bot) cmdNotify(ctx context.Context, msg *telegram.Message, args []string) {
	if len(args) == 0 {
		b.replyNotifyState(ctx, msg)
		return
	}
	if len(args) < 2 {
		b.reply(ctx, msg, "Usage: /notify &lt;monitoring|payments&gt; &lt;on|off&gt;")
		return
	}
	key, ok := notifyKeys[args[0]]
	if !ok {
		b.reply(ctx, msg, fmt.Sprintf("Unknown notification channel %q.", args[0]))
		return
	}
	var value bool
	switch args[1] {
	case "on":
		value = true
	case "off":
		value = false
	default:
		b.reply(ctx, msg, "Answer <b>on</b> or <b>off</b>.")
		return
	}

	if err := b.settings.SetBool(ctx, key, value); err != nil {
		b.logger.Error("saving notification switch failed", zap.String("key", key), zap.Error(err))
		b.reply(ctx, msg, "❌ Could not save the switch.")
		return
	}
	b.logAction(ctx, msg.From.ID, "notify", fmt.Sprintf("%s=%s", args[0], args[1]))
	b.replyNotifyState(ctx, msg)
}

func (b *Bot) replyNotifyState(ctx context.Context, msg *telegram.Message) {
	var sb strings.Builder
	sb.WriteString("\U0001f514 <b>Notifications</b>\n\n")
	for _, name := range []string{"monitoring", "payments"} {
		on, err := b.settings.GetBool(ctx, notifyKeys[name], true)
		if err != nil {
			b.logger.Warn("reading notification switch failed", zap.String("channel", name), zap.Error(err))
			continue
		}
		state := "\U0001f7e2 on"
		if !on {
			state = "\U0001f534 off"
		}
		fmt.Fprintf(&sb, "%s: %s\n", name, state)
	}
	b.reply(ctx, msg, sb.String())
}
