// Package report renders HTML-formatted messages for the Telegram chat:
// server status cards, payment reminders, and balance summaries.
package report

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/sentinelvps/sentinel/internal/billing"
	"github.com/sentinelvps/sentinel/internal/fleet"
	"github.com/sentinelvps/sentinel/internal/monitor"
)

// OutputLimit is how much command output is kept when displaying; chat
// messages have a hard length cap, so only the tail survives.
const OutputLimit = 3500

const divider = "━━━━━━━━━━━━━━━━━━━━"

// ProgressBar renders percent as a fixed-width bar of filled and empty
// blocks.
func ProgressBar(percent float64) string {
	const length = 10
	filled := int(float64(length) * percent / 100)
	if filled < 0 {
		filled = 0
	}
	if filled > length {
		filled = length
	}
	return strings.Repeat("▓", filled) + strings.Repeat("░", length-filled)
}

// Bytes renders a byte count with a binary unit suffix.
func Bytes(v float64) string {
	for _, unit := range []string{"B", "KB", "MB", "GB", "TB"} {
		if v < 1024 {
			return fmt.Sprintf("%.1f %s", v, unit)
		}
		v /= 1024
	}
	return fmt.Sprintf("%.1f PB", v)
}

// Uptime renders seconds as "Nd Nh Nm", omitting leading zero units.
func Uptime(seconds int64) string {
	days := seconds / 86400
	hours := (seconds % 86400) / 3600
	minutes := (seconds % 3600) / 60

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	parts = append(parts, fmt.Sprintf("%dm", minutes))
	return strings.Join(parts, " ")
}

// Money renders an amount with thousands separators and a currency
// symbol. Whole amounts drop the decimals.
func Money(amount float64, currency string) string {
	symbol := currencySymbol(currency)
	if amount == float64(int64(amount)) {
		return groupDigits(fmt.Sprintf("%d", int64(amount))) + symbol
	}
	s := fmt.Sprintf("%.2f", amount)
	dot := strings.IndexByte(s, '.')
	return groupDigits(s[:dot]) + s[dot:] + symbol
}

func currencySymbol(currency string) string {
	switch currency {
	case "", "RUB":
		return "₽"
	case "USD":
		return "$"
	case "EUR":
		return "€"
	default:
		return " " + currency
	}
}

// groupDigits inserts thin spaces between thousands groups.
func groupDigits(s string) string {
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

// Truncate keeps only the tail of long command output.
func Truncate(s string) string {
	if len(s) <= OutputLimit {
		return s
	}
	return "…" + s[len(s)-OutputLimit:]
}

// ServerStatus renders a full status card for one server. A nil
// snapshot renders the offline variant.
func ServerStatus(srv *fleet.Server, snap *monitor.Snapshot) string {
	if snap == nil {
		return fmt.Sprintf(
			"\U0001f5a5 <b>%s</b>\n%s\n\U0001f534 Status: <b>Offline</b>\n\U0001f310 Host: <code>%s</code>\n",
			srv.Name, divider, srv.Host,
		)
	}

	return fmt.Sprintf(
		"\U0001f4ca <b>Monitoring — %s</b>\n%s\n"+
			"\U0001f5a5 CPU: %.0f%% %s %d cores\n"+
			"\U0001f9e0 RAM: %.0f%% %s %s/%s\n"+
			"\U0001f4be Disk: %.0f%% %s %s/%s\n"+
			"\U0001f310 Network: ↑ %s/s ↓ %s/s\n"+
			"⏱ Uptime: %s\n"+
			"\U0001f4e1 Ping: %.0fms\n%s\n"+
			"\U0001f7e2 Status: <b>Online</b>\n"+
			"\U0001f550 Updated: %s\n",
		srv.Name, divider,
		snap.CPUPercent, ProgressBar(snap.CPUPercent), snap.CPUCores,
		snap.RAMPercent, ProgressBar(snap.RAMPercent), Bytes(float64(snap.RAMUsed)), Bytes(float64(snap.RAMTotal)),
		snap.DiskPercent, ProgressBar(snap.DiskPercent), Bytes(float64(snap.DiskUsed)), Bytes(float64(snap.DiskTotal)),
		Bytes(float64(snap.NetUpload)), Bytes(float64(snap.NetDownload)),
		Uptime(snap.UptimeSeconds),
		snap.PingMS, divider,
		snap.CollectedAt.Format("02.01.2006 15:04"),
	)
}

// PaymentReminder renders the reminder pushed when a payment is
// daysLeft days from due.
func PaymentReminder(p *billing.Payment, daysLeft int) string {
	var urgency string
	switch {
	case daysLeft == 0:
		urgency = "\U0001f534\U0001f534\U0001f534 Due TODAY!"
	case daysLeft == 1:
		urgency = "\U0001f7e0 Due tomorrow!"
	case daysLeft <= 3:
		urgency = fmt.Sprintf("\U0001f7e1 Due in %d days", daysLeft)
	default:
		urgency = fmt.Sprintf("\U0001f535 Due in %d days", daysLeft)
	}

	return fmt.Sprintf(
		"\U0001f4b0 <b>Payment reminder</b>\n%s\n%s\n\n"+
			"\U0001f4cb %s\n"+
			"\U0001f5a5 Server: %s\n"+
			"\U0001f4b5 Amount: <b>%s</b>\n"+
			"\U0001f4c5 Due: %s\n",
		divider, urgency,
		p.Description, p.ServerName, Money(p.Amount, p.Currency), p.DueDate,
	)
}

// BalanceReport renders the current balance with a summary of recent
// ledger activity.
func BalanceReport(balance float64, history []billing.BalanceEntry, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\U0001f4b3 <b>Balance</b>\n%s\n", divider)

	if len(history) > 0 {
		fmt.Fprintf(&b, "\U0001f4b0 Previous balance: %s\n", Money(history[0].BalanceBefore, ""))

		var income, expense, payment float64
		for _, h := range history {
			switch h.OperationType {
			case billing.OpIncome:
				income += h.Amount
			case billing.OpExpense:
				expense += h.Amount
			case billing.OpPayment:
				payment += h.Amount
			}
		}
		fmt.Fprintf(&b, "\U0001f4e5 Deposits: %s\n", moneyOrDash(income))
		fmt.Fprintf(&b, "\U0001f4e4 Withdrawals: %s\n", moneyOrDash(expense))
		fmt.Fprintf(&b, "\U0001f9fe Payments: %s\n", moneyOrDash(payment))
	}

	fmt.Fprintf(&b, "✅ Balance: <b>%s</b>\n%s\n\U0001f4c5 %s • \U0001f550 %s\n",
		Money(balance, ""), divider,
		now.Format("02.01.2006"), now.Format("15:04"),
	)
	return b.String()
}

func moneyOrDash(amount float64) string {
	if amount == 0 {
		return "—"
	}
	return Money(amount, "")
}

// ServerList renders the fleet overview.
func ServerList(servers []fleet.Server) string {
	if len(servers) == 0 {
		return "\U0001f5a5 <b>Servers</b>\n\nNo servers added yet."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\U0001f5a5 <b>Servers</b> (%d)\n%s\n\n", len(servers), divider)
	for _, s := range servers {
		status := "\U0001f7e2"
		if !s.Active {
			status = "\U0001f534"
		}
		fmt.Fprintf(&b, "%s <b>%s</b> — <code>%s:%d</code>\n", status, s.Name, s.Host, s.Port)
	}
	return b.String()
}

// FleetOverview renders one compact line per server from a fresh
// collection round. Servers missing from snaps render as offline.
func FleetOverview(servers []fleet.Server, snaps map[int64]*monitor.Snapshot) string {
	if len(servers) == 0 {
		return "\U0001f4ca <b>Monitoring</b>\n\nNo servers added yet."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\U0001f4ca <b>Monitoring</b> (%d)\n%s\n\n", len(servers), divider)
	for _, s := range servers {
		snap := snaps[s.ID]
		if snap == nil {
			fmt.Fprintf(&b, "\U0001f534 <b>%s</b> — offline\n", s.Name)
			continue
		}
		fmt.Fprintf(&b, "\U0001f7e2 <b>%s</b> — CPU %.0f%% • RAM %.0f%% • Disk %.0f%% • up %s\n",
			s.Name, snap.CPUPercent, snap.RAMPercent, snap.DiskPercent, Uptime(snap.UptimeSeconds))
	}
	return b.String()
}

// PaymentList renders upcoming payments ordered by due date.
func PaymentList(payments []billing.Payment, now time.Time) string {
	if len(payments) == 0 {
		return "\U0001f4b0 <b>Payments</b>\n\nNothing due."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\U0001f4b0 <b>Payments</b> (%d)\n%s\n\n", len(payments), divider)
	for _, p := range payments {
		line := fmt.Sprintf("#%d %s — <b>%s</b>, due %s", p.ID, p.Description, Money(p.Amount, p.Currency), p.DueDate)
		if due, err := p.Due(); err == nil {
			days := int(due.Sub(now.Truncate(24*time.Hour)).Hours() / 24)
			if days < 0 {
				line += " ⚠️ overdue"
			}
		}
		if p.ServerName != "" {
			line += fmt.Sprintf(" (%s)", p.ServerName)
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

// UpdateResult renders the outcome card of a predefined component
// update on a server.
func UpdateResult(title, serverName string, stdout, stderr string, exitCode int) string {
	output := stdout
	if output == "" {
		output = stderr
	}
	if output == "" {
		output = "(empty)"
	}

	icon, status := "✅", "OK"
	if exitCode != 0 {
		icon, status = "❌", "Failed"
	}
	return fmt.Sprintf(
		"%s <b>%s — %s</b>\n\U0001f5a5 %s\n\n<pre>%s</pre>",
		icon, title, status, serverName, html.EscapeString(Truncate(output)),
	)
}

// ExecResult renders remote command output for chat display, keeping
// only the tail of oversized output.
func ExecResult(command string, stdout, stderr string, exitCode int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<code>$ %s</code>\n", html.EscapeString(command))
	if exitCode == 0 {
		b.WriteString("✅ exit 0\n")
	} else {
		fmt.Fprintf(&b, "❌ exit %d\n", exitCode)
	}
	if stdout != "" {
		fmt.Fprintf(&b, "<pre>%s</pre>\n", html.EscapeString(Truncate(stdout)))
	}
	if stderr != "" {
		fmt.Fprintf(&b, "<pre>%s</pre>\n", html.EscapeString(Truncate(stderr)))
	}
	return b.String()
}
