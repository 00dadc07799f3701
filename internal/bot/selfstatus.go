package bot

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/sentinelvps/sentinel/internal/report"
	"github.com/sentinelvps/sentinel/internal/telegram"
)

// cmdStatus reports the health of the host the bot itself runs on.
// Every probe is best-effort; unavailable readings are simply omitted.
func (b *Bot) cmdStatus(ctx context.Context, msg *telegram.Message) {
	var sb strings.Builder
	sb.WriteString("\U0001f916 <b>Sentinel host</b>\n\n")

	if hostname, err := os.Hostname(); err == nil {
		fmt.Fprintf(&sb, "\U0001f5a5 <code>%s</code>", hostname)
		if info, err := host.InfoWithContext(ctx); err == nil {
			fmt.Fprintf(&sb, " — %s %s, up %s", info.Platform, info.PlatformVersion, report.Uptime(int64(info.Uptime)))
		}
		sb.WriteByte('\n')
	}

	if percents, err := cpu.PercentWithContext(ctx, time.Second, false); err == nil && len(percents) > 0 {
		fmt.Fprintf(&sb, "CPU: %.0f%% %s", percents[0], report.ProgressBar(percents[0]))
		if avg, err := load.AvgWithContext(ctx); err == nil {
			fmt.Fprintf(&sb, " (load %.2f)", avg.Load1)
		}
		sb.WriteByte('\n')
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		fmt.Fprintf(&sb, "RAM: %.0f%% %s %s/%s\n",
			vm.UsedPercent, report.ProgressBar(vm.UsedPercent),
			report.Bytes(float64(vm.Used)), report.Bytes(float64(vm.Total)))
	}

	if usage, err := disk.UsageWithContext(ctx, "/"); err == nil {
		fmt.Fprintf(&sb, "Disk: %.0f%% %s %s/%s\n",
			usage.UsedPercent, report.ProgressBar(usage.UsedPercent),
			report.Bytes(float64(usage.Used)), report.Bytes(float64(usage.Total)))
	}

	b.reply(ctx, msg, sb.String())
}
