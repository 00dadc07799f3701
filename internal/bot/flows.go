package bot

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sentinelvps/sentinel/internal/billing"
	"github.com/sentinelvps/sentinel/internal/fleet"
	"github.com/sentinelvps/sentinel/internal/telegram"
)

// handleFormInput advances an in-flight conversation with one plain
// (non-command) message.
func (b *Bot) handleFormInput(ctx context.Context, logger *zap.Logger, msg *telegram.Message, key formKey, f *form) {
	input := strings.TrimSpace(msg.Text)
	if input == "" {
		return
	}

	switch f.flow {
	case flowAddServer:
		b.stepAddServer(ctx, msg, key, f, input)
	case flowAddPayment:
		b.stepAddPayment(ctx, msg, key, f, input)
	case flowEditField:
		b.stepEditField(ctx, msg, key, f, input)
	case flowPassword:
		b.stepPassword(ctx, msg, key, f, input)
	case flowExec:
		b.stepExec(ctx, msg, key, f, input)
	default:
		logger.Warn("form with unknown flow", zap.Int("flow", int(f.flow)))
		b.forms.clear(key)
	}
}

func (b *Bot) stepAddServer(ctx context.Context, msg *telegram.Message, key formKey, f *form, input string) {
	switch f.step {
	case stepServerName:
		f.server.Name = input
		f.step = stepServerHost
		b.reply(ctx, msg, "Host or IP?")

	case stepServerHost:
		f.server.Host = input
		f.step = stepServerPort
		b.reply(ctx, msg, "SSH port? (- for 22)")

	case stepServerPort:
		if input != "-" {
			port, err := strconv.Atoi(input)
			if err != nil || port < 1 || port > 65535 {
				b.reply(ctx, msg, "Port must be 1-65535, or - for the default.")
				return
			}
			f.server.Port = port
		}
		f.step = stepServerUser
		b.reply(ctx, msg, "Login user? (- for root)")

	case stepServerUser:
		if input != "-" {
			f.server.Username = input
		}
		f.step = stepServerAuth
		b.reply(ctx, msg, "Auth type: <b>password</b> or <b>key</b>?")

	case stepServerAuth:
		switch strings.ToLower(input) {
		case fleet.AuthPassword:
			f.server.AuthType = fleet.AuthPassword
			b.reply(ctx, msg, "Password?")
		case fleet.AuthKey:
			f.server.AuthType = fleet.AuthKey
			b.reply(ctx, msg, "Paste the private key (PEM).")
		default:
			b.reply(ctx, msg, "Answer <b>password</b> or <b>key</b>.")
			return
		}
		f.step = stepServerSecret

	case stepServerSecret:
		if f.server.AuthType == fleet.AuthKey {
			f.server.PrivateKey = msg.Text // keep PEM line breaks
		} else {
			f.server.Password = input
		}
		b.finishAddServer(ctx, msg, key, f)
	}
}

func (b *Bot) finishAddServer(ctx context.Context, msg *telegram.Message, key formKey, f *form) {
	b.forms.clear(key)

	if err := b.fleet.Insert(ctx, &f.server); err != nil {
		b.logger.Error("server insert failed", zap.String("name", f.server.Name), zap.Error(err))
		b.reply(ctx, msg, "❌ Could not save the server.")
		return
	}
	b.logAction(ctx, msg.From.ID, "addserver", f.server.Name)

	status := "\U0001f534 unreachable"
	if b.remote.CheckConnection(ctx, targetFor(&f.server)) {
		status = "\U0001f7e2 online"
	}
	b.reply(ctx, msg, fmt.Sprintf(
		"✅ Server <b>%s</b> added (#%d).\nConnection check: %s",
		f.server.Name, f.server.ID, status,
	))
}

func (b *Bot) stepAddPayment(ctx context.Context, msg *telegram.Message, key formKey, f *form, input string) {
	switch f.step {
	case stepPaymentDescription:
		f.payment.Description = input
		f.step = stepPaymentAmount
		b.reply(ctx, msg, "Amount?")

	case stepPaymentAmount:
		amount, err := strconv.ParseFloat(strings.ReplaceAll(input, ",", "."), 64)
		if err != nil || amount <= 0 {
			b.reply(ctx, msg, "Amount must be a positive number.")
			return
		}
		f.payment.Amount = amount
		f.step = stepPaymentDueDate
		b.reply(ctx, msg, "Due date? (YYYY-MM-DD)")

	case stepPaymentDueDate:
		if _, err := time.Parse(billing.DateLayout, input); err != nil {
			b.reply(ctx, msg, "Date must look like 2026-03-15.")
			return
		}
		f.payment.DueDate = input
		f.step = stepPaymentServer
		b.reply(ctx, msg, "Server id to tie it to? (- for none)")

	case stepPaymentServer:
		if input != "-" {
			id, err := strconv.ParseInt(input, 10, 64)
			if err != nil {
				b.reply(ctx, msg, "Server id must be a number, or - for none.")
				return
			}
			srv, err := b.fleet.Get(ctx, id)
			if err != nil || srv == nil {
				b.reply(ctx, msg, "No such server; pick one from /servers or answer -.")
				return
			}
			f.payment.ServerID = id
		}
		b.finishAddPayment(ctx, msg, key, f)
	}
}

func (b *Bot) finishAddPayment(ctx context.Context, msg *telegram.Message, key formKey, f *form) {
	b.forms.clear(key)

	f.payment.Recurring = true
	if err := b.billing.InsertPayment(ctx, &f.payment); err != nil {
		b.logger.Error("payment insert failed", zap.String("description", f.payment.Description), zap.Error(err))
		b.reply(ctx, msg, "❌ Could not save the payment.")
		return
	}
	b.logAction(ctx, msg.From.ID, "addpayment", f.payment.Description)
	b.reply(ctx, msg, fmt.Sprintf(
		"✅ Payment <b>%s</b> added (#%d), due %s.",
		f.payment.Description, f.payment.ID, f.payment.DueDate,
	))
}

func (b *Bot) stepEditField(ctx context.Context, msg *telegram.Message, key formKey, f *form, input string) {
	b.forms.clear(key)

	srv, err := b.fleet.Get(ctx, f.serverID)
	if err != nil || srv == nil {
		b.reply(ctx, msg, "❌ The server is gone.")
		return
	}
	value := input
	if f.field == "key" {
		value = msg.Text
	}
	b.applyServerField(ctx, msg, msg.From.ID, srv, f.field, value)
}

func (b *Bot) stepPassword(ctx context.Context, msg *telegram.Message, key formKey, f *form, input string) {
	b.forms.clear(key)

	srv, err := b.fleet.Get(ctx, f.serverID)
	if err != nil || srv == nil {
		b.reply(ctx, msg, "❌ The server is gone.")
		return
	}

	ok, detail := b.remote.ChangePassword(ctx, targetFor(srv), input)
	if !ok {
		b.reply(ctx, msg, fmt.Sprintf("❌ Password change failed:\n<pre>%s</pre>", html.EscapeString(detail)))
		return
	}

	if srv.AuthType == fleet.AuthPassword {
		srv.Password = input
		if err := b.fleet.Update(ctx, srv); err != nil {
			b.logger.Error("storing new password failed", zap.Int64("server_id", srv.ID), zap.Error(err))
			b.reply(ctx, msg, "⚠️ Password changed on the host, but saving it locally failed.")
			return
		}
	}
	b.logAction(ctx, msg.From.ID, "passwd", srv.Name)
	b.reply(ctx, msg, fmt.Sprintf("✅ Password changed on <b>%s</b>.", srv.Name))
}

func (b *Bot) stepExec(ctx context.Context, msg *telegram.Message, key formKey, f *form, input string) {
	b.forms.clear(key)

	srv, err := b.fleet.Get(ctx, f.serverID)
	if err != nil || srv == nil {
		b.reply(ctx, msg, "❌ The server is gone.")
		return
	}
	b.runCommand(ctx, msg, srv, input)
}
