package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sentinelvps/sentinel/internal/fleet"
	"github.com/sentinelvps/sentinel/internal/report"
	"github.com/sentinelvps/sentinel/internal/sshx"
	"github.com/sentinelvps/sentinel/internal/telegram"
)

const helpText = `<b>Sentinel</b> — VPS fleet console

/servers — list servers
/server &lt;id&gt; — live status card
/monitor — fleet-wide metrics snapshot
/addserver — add a server (guided)
/editserver &lt;id&gt; &lt;field&gt; [value] — change a server field
/delserver &lt;id&gt; — remove a server
/exec &lt;id&gt; [command] — run a remote command
/passwd &lt;id&gt; — change the server's login password
/maintain &lt;id&gt; &lt;component&gt; — update/redeploy a component
/backup &lt;component&gt; [id] — run a component update (single-server shortcut)

/payments — upcoming payments
/addpayment — add a payment (guided)
/paid &lt;id&gt; [days] — mark paid, optionally renew for N days
/balance — balance and recent activity
/income &lt;amount&gt; [note] — record a deposit
/expense &lt;amount&gt; [note] — record a withdrawal

/admins — list admins
/addadmin &lt;id&gt; [username] — allow-list an account (primary admins only)
/deladmin &lt;id&gt; — remove an added admin (primary admins only)
/settopic &lt;category&gt; &lt;thread id&gt; — rebind a message topic
/notify [&lt;channel&gt; &lt;on|off&gt;] — show or flip notification switches

/logs — recent admin actions
/status — bot host health
/cancel — abort the current form`

func targetFor(srv *fleet.Server) sshx.Target {
	return sshx.Target{
		Host:       srv.Host,
		Port:       srv.Port,
		Username:   srv.Username,
		AuthType:   srv.AuthType,
		Password:   srv.Password,
		PrivateKey: srv.PrivateKey,
	}
}

func (b *Bot) cmdStart(ctx context.Context, msg *telegram.Message) {
	b.reply(ctx, msg, helpText)
}

func (b *Bot) cmdCancel(ctx context.Context, msg *telegram.Message, key formKey) {
	if b.forms.get(key) == nil {
		b.reply(ctx, msg, "Nothing to cancel.")
		return
	}
	b.forms.clear(key)
	b.reply(ctx, msg, "❌ Canceled.")
}

func (b *Bot) cmdServers(ctx context.Context, msg *telegram.Message) {
	servers, err := b.fleet.ListActive(ctx)
	if err != nil {
		b.logger.Error("listing servers failed", zap.Error(err))
		b.reply(ctx, msg, "❌ Could not load the server list.")
		return
	}
	b.reply(ctx, msg, report.ServerList(servers))
}

func (b *Bot) cmdServer(ctx context.Context, msg *telegram.Message, args []string) {
	srv, ok := b.lookupServer(ctx, msg, args)
	if !ok {
		return
	}

	snap, err := b.collector.CollectServer(ctx, srv.ID)
	if err != nil {
		b.logger.Error("on-demand collection failed", zap.Int64("server_id", srv.ID), zap.Error(err))
	}
	b.reply(ctx, msg, report.ServerStatus(srv, snap))
}

func (b *Bot) cmdMonitor(ctx context.Context, msg *telegram.Message) {
	servers, err := b.fleet.ListActive(ctx)
	if err != nil {
		b.logger.Error("listing servers failed", zap.Error(err))
		b.reply(ctx, msg, "❌ Could not load the server list.")
		return
	}
	snaps, err := b.collector.CollectAll(ctx)
	if err != nil {
		b.logger.Error("fleet collection failed", zap.Error(err))
		b.reply(ctx, msg, "❌ Collection failed.")
		return
	}
	b.reply(ctx, msg, report.FleetOverview(servers, snaps))
}

func (b *Bot) cmdAddServer(ctx context.Context, msg *telegram.Message, key formKey) {
	b.forms.put(key, &form{flow: flowAddServer, step: stepServerName})
	b.reply(ctx, msg, "\U0001f5a5 Adding a server. Name?")
}

func (b *Bot) cmdEditServer(ctx context.Context, msg *telegram.Message, key formKey, args []string) {
	if len(args) < 2 {
		b.reply(ctx, msg, "Usage: /editserver &lt;id&gt; &lt;name|host|port|username|password|key&gt; [value]")
		return
	}
	srv, ok := b.lookupServer(ctx, msg, args[:1])
	if !ok {
		return
	}
	field := args[1]
	switch field {
	case "name", "host", "port", "username", "password", "key":
	default:
		b.reply(ctx, msg, fmt.Sprintf("Unknown field %q.", field))
		return
	}

	if len(args) < 3 {
		// Capture the value as the next message; secrets in particular
		// should not ride along with the command.
		b.forms.put(key, &form{flow: flowEditField, serverID: srv.ID, field: field})
		b.reply(ctx, msg, fmt.Sprintf("New value for <b>%s</b>?", field))
		return
	}

	b.applyServerField(ctx, msg, msg.From.ID, srv, field, strings.Join(args[2:], " "))
}

func (b *Bot) cmdDelServer(ctx context.Context, msg *telegram.Message, args []string) {
	srv, ok := b.lookupServer(ctx, msg, args)
	if !ok {
		return
	}
	if err := b.fleet.Deactivate(ctx, srv.ID); err != nil {
		b.logger.Error("deactivate failed", zap.Int64("server_id", srv.ID), zap.Error(err))
		b.reply(ctx, msg, "❌ Could not remove the server.")
		return
	}
	b.logAction(ctx, msg.From.ID, "delserver", srv.Name)
	b.reply(ctx, msg, fmt.Sprintf("✅ Server <b>%s</b> removed.", srv.Name))
}

func (b *Bot) cmdExec(ctx context.Context, msg *telegram.Message, key formKey, args []string) {
	srv, ok := b.lookupServer(ctx, msg, args)
	if !ok {
		return
	}
	if len(args) < 2 {
		b.forms.put(key, &form{flow: flowExec, serverID: srv.ID})
		b.reply(ctx, msg, fmt.Sprintf("\U0001f4bb Command to run on <b>%s</b>?", srv.Name))
		return
	}
	b.runCommand(ctx, msg, srv, strings.Join(args[1:], " "))
}

func (b *Bot) runCommand(ctx context.Context, msg *telegram.Message, srv *fleet.Server, command string) {
	result := b.remote.Execute(ctx, targetFor(srv), command, sshx.DefaultTimeout)
	b.logAction(ctx, msg.From.ID, "exec", fmt.Sprintf("%s: %s", srv.Name, command))
	b.reply(ctx, msg, report.ExecResult(command, result.Stdout, result.Stderr, result.ExitCode))
}

func (b *Bot) cmdPasswd(ctx context.Context, msg *telegram.Message, key formKey, args []string) {
	srv, ok := b.lookupServer(ctx, msg, args)
	if !ok {
		return
	}
	b.forms.put(key, &form{flow: flowPassword, serverID: srv.ID})
	b.reply(ctx, msg, fmt.Sprintf("\U0001f511 New password for <b>%s</b>@%s?", srv.Username, srv.Name))
}

func (b *Bot) cmdMaintain(ctx context.Context, msg *telegram.Message, args []string) {
	if len(args) < 2 {
		b.reply(ctx, msg, fmt.Sprintf("Usage: /maintain &lt;id&gt; &lt;%s&gt;", strings.Join(sshx.Components(), "|")))
		return
	}
	srv, ok := b.lookupServer(ctx, msg, args[:1])
	if !ok {
		return
	}
	component := args[1]

	b.reply(ctx, msg, fmt.Sprintf("⏳ Running <b>%s</b> maintenance on <b>%s</b>…", component, srv.Name))
	result := b.remote.Maintain(ctx, targetFor(srv), component)
	b.logAction(ctx, msg.From.ID, "maintain", fmt.Sprintf("%s: %s", srv.Name, component))
	b.reply(ctx, msg, report.ExecResult("maintain "+component, result.Stdout, result.Stderr, result.ExitCode))
}

// cmdBackup runs a predefined component update. With a single active
// server the id may be omitted.
func (b *Bot) cmdBackup(ctx context.Context, msg *telegram.Message, args []string) {
	if len(args) < 1 {
		b.reply(ctx, msg, fmt.Sprintf("Usage: /backup &lt;%s&gt; [id]", strings.Join(sshx.Components(), "|")))
		return
	}
	component := args[0]
	known := false
	for _, c := range sshx.Components() {
		if c == component {
			known = true
			break
		}
	}
	if !known {
		b.reply(ctx, msg, fmt.Sprintf("Unknown component %q. Valid: %s.", component, strings.Join(sshx.Components(), ", ")))
		return
	}

	var srv *fleet.Server
	if len(args) >= 2 {
		var ok bool
		if srv, ok = b.lookupServer(ctx, msg, args[1:]); !ok {
			return
		}
	} else {
		servers, err := b.fleet.ListActive(ctx)
		if err != nil {
			b.logger.Error("listing servers failed", zap.Error(err))
			b.reply(ctx, msg, "❌ Could not load the server list.")
			return
		}
		switch len(servers) {
		case 0:
			b.reply(ctx, msg, "No servers. Add one first with /addserver.")
			return
		case 1:
			srv = &servers[0]
		default:
			b.reply(ctx, msg, "Several servers registered; pass the id, see /servers.")
			return
		}
	}

	title := sshx.ComponentTitle(component)
	b.reply(ctx, msg, fmt.Sprintf("⏳ <b>%s</b>\nUpdating on %s…", title, srv.Name))
	result := b.remote.Maintain(ctx, targetFor(srv), component)
	b.logAction(ctx, msg.From.ID, "update_"+component, srv.Name)
	b.reply(ctx, msg, report.UpdateResult(title, srv.Name, result.Stdout, result.Stderr, result.ExitCode))
}

func (b *Bot) cmdAddPayment(ctx context.Context, msg *telegram.Message, key formKey) {
	b.forms.put(key, &form{flow: flowAddPayment, step: stepPaymentDescription})
	b.reply(ctx, msg, "\U0001f4b0 Adding a payment. Description?")
}

func (b *Bot) cmdPayments(ctx context.Context, msg *telegram.Message) {
	payments, err := b.billing.ListUnpaid(ctx)
	if err != nil {
		b.logger.Error("listing payments failed", zap.Error(err))
		b.reply(ctx, msg, "❌ Could not load payments.")
		return
	}
	b.reply(ctx, msg, report.PaymentList(payments, b.now()))
}

func (b *Bot) cmdPaid(ctx context.Context, msg *telegram.Message, args []string) {
	if len(args) < 1 {
		b.reply(ctx, msg, "Usage: /paid &lt;id&gt; [days]")
		return
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		b.reply(ctx, msg, "Payment id must be a number.")
		return
	}
	p, err := b.billing.GetPayment(ctx, id)
	if err != nil {
		b.logger.Error("loading payment failed", zap.Int64("payment_id", id), zap.Error(err))
		b.reply(ctx, msg, "❌ Could not load the payment.")
		return
	}
	if p == nil {
		b.reply(ctx, msg, "No such payment.")
		return
	}

	if len(args) >= 2 {
		days, err := strconv.Atoi(args[1])
		if err != nil || days <= 0 {
			b.reply(ctx, msg, "Days must be a positive number.")
			return
		}
		if err := b.billing.Renew(ctx, id, days, b.now()); err != nil {
			b.logger.Error("renew failed", zap.Int64("payment_id", id), zap.Error(err))
			b.reply(ctx, msg, "❌ Could not renew the payment.")
			return
		}
		newDue := b.now().AddDate(0, 0, days).Format("02.01.2006")
		b.logAction(ctx, msg.From.ID, "paid", fmt.Sprintf("%s renewed %dd", p.Description, days))
		b.reply(ctx, msg, fmt.Sprintf("✅ <b>Paid and renewed!</b>\n\U0001f4cb %s\n\U0001f4c5 Next due: <b>%s</b>", p.Description, newDue))
		return
	}

	if err := b.billing.MarkPaid(ctx, id); err != nil {
		b.logger.Error("mark paid failed", zap.Int64("payment_id", id), zap.Error(err))
		b.reply(ctx, msg, "❌ Could not mark the payment paid.")
		return
	}
	b.logAction(ctx, msg.From.ID, "paid", p.Description)
	b.reply(ctx, msg, fmt.Sprintf("✅ <b>%s</b> marked paid.", p.Description))
}

func (b *Bot) cmdBalance(ctx context.Context, msg *telegram.Message) {
	balance, err := b.billing.Balance(ctx)
	if err != nil {
		b.logger.Error("reading balance failed", zap.Error(err))
		b.reply(ctx, msg, "❌ Could not read the balance.")
		return
	}
	history, err := b.billing.History(ctx, 10)
	if err != nil {
		b.logger.Warn("reading balance history failed", zap.Error(err))
	}
	b.reply(ctx, msg, report.BalanceReport(balance, history, b.now()))
}

func (b *Bot) cmdOperation(ctx context.Context, msg *telegram.Message, opType string, args []string) {
	if len(args) < 1 {
		b.reply(ctx, msg, fmt.Sprintf("Usage: /%s &lt;amount&gt; [note]", opType))
		return
	}
	amount, err := strconv.ParseFloat(strings.ReplaceAll(args[0], ",", "."), 64)
	if err != nil || amount <= 0 {
		b.reply(ctx, msg, "Amount must be a positive number.")
		return
	}
	description := strings.Join(args[1:], " ")

	_, after, err := b.billing.AddOperation(ctx, opType, amount, description)
	if err != nil {
		b.logger.Error("balance operation failed", zap.String("type", opType), zap.Error(err))
		b.reply(ctx, msg, "❌ Could not record the operation.")
		return
	}
	b.logAction(ctx, msg.From.ID, opType, fmt.Sprintf("%.2f %s", amount, description))
	b.reply(ctx, msg, fmt.Sprintf("✅ Recorded. Balance: <b>%s</b>", report.Money(after, "")))
}

func (b *Bot) cmdLogs(ctx context.Context, msg *telegram.Message) {
	entries, err := b.settings.RecentActions(ctx, 20)
	if err != nil {
		b.logger.Error("reading action log failed", zap.Error(err))
		b.reply(ctx, msg, "❌ Could not read the action log.")
		return
	}
	if len(entries) == 0 {
		b.reply(ctx, msg, "\U0001f4dc No actions logged yet.")
		return
	}

	var sb strings.Builder
	sb.WriteString("\U0001f4dc <b>Recent actions</b>\n\n")
	for _, e := range entries {
		fmt.Fprintf(&sb, "%s — <code>%d</code> %s", e.CreatedAt.Format("02.01 15:04"), e.AdminID, e.Action)
		if e.Details != "" {
			fmt.Fprintf(&sb, ": %s", e.Details)
		}
		sb.WriteByte('\n')
	}
	b.reply(ctx, msg, sb.String())
}

// lookupServer resolves args[0] as a server ID and replies with the
// usage hint or a not-found notice itself.
func (b *Bot) lookupServer(ctx context.Context, msg *telegram.Message, args []string) (*fleet.Server, bool) {
	if len(args) < 1 {
		b.reply(ctx, msg, "Which server? Pass its id, see /servers.")
		return nil, false
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		b.reply(ctx, msg, "Server id must be a number.")
		return nil, false
	}
	srv, err := b.fleet.Get(ctx, id)
	if err != nil {
		b.logger.Error("loading server failed", zap.Int64("server_id", id), zap.Error(err))
		b.reply(ctx, msg, "❌ Could not load the server.")
		return nil, false
	}
	if srv == nil || !srv.Active {
		b.reply(ctx, msg, "No such server.")
		return nil, false
	}
	return srv, true
}

func (b *Bot) applyServerField(ctx context.Context, msg *telegram.Message, adminID int64, srv *fleet.Server, field, value string) {
	switch field {
	case "name":
		srv.Name = value
	case "host":
		srv.Host = value
	case "port":
		port, err := strconv.Atoi(value)
		if err != nil || port < 1 || port > 65535 {
			b.reply(ctx, msg, "Port must be 1-65535.")
			return
		}
		srv.Port = port
	case "username":
		srv.Username = value
	case "password":
		srv.Password = value
		srv.AuthType = fleet.AuthPassword
	case "key":
		srv.PrivateKey = value
		srv.AuthType = fleet.AuthKey
	}

	if err := b.fleet.Update(ctx, srv); err != nil {
		b.logger.Error("server update failed", zap.Int64("server_id", srv.ID), zap.Error(err))
		b.reply(ctx, msg, "❌ Could not save the change.")
		return
	}
	b.logAction(ctx, adminID, "editserver", fmt.Sprintf("%s: %s", srv.Name, field))
	b.reply(ctx, msg, fmt.Sprintf("✅ <b>%s</b> updated.", field))
}
