package monitor

import (
	"strconv"
	"strings"
	"time"
)

// probeScript is executed on each server over SSH. Every section is
// delimited by a marker line so the output can be split and parsed
// order-independently.
const probeScript = `
echo "===CPU==="
cat /proc/loadavg
nproc
echo "===MEM==="
free -b | grep Mem
echo "===DISK==="
df -B1 / | tail -1
echo "===NET==="
cat /proc/net/dev | grep -E "eth0|ens|enp" | head -1
echo "===UPTIME==="
cat /proc/uptime
echo "===CPU_PERCENT==="
top -bn1 | grep "Cpu(s)" | awk '{print $2}'
`

// Snapshot is one point-in-time metrics reading for a server.
type Snapshot struct {
	CPUPercent    float64   `json:"cpu_percent"`
	CPUCores      int       `json:"cpu_cores"`
	Load1         float64   `json:"load_1m"`
	RAMUsed       int64     `json:"ram_used"`
	RAMTotal      int64     `json:"ram_total"`
	RAMPercent    float64   `json:"ram_percent"`
	DiskUsed      int64     `json:"disk_used"`
	DiskTotal     int64     `json:"disk_total"`
	DiskPercent   float64   `json:"disk_percent"`
	UptimeSeconds int64     `json:"uptime_seconds"`
	NetUpload     int64     `json:"net_upload"`
	NetDownload   int64     `json:"net_download"`
	PingMS        float64   `json:"ping_ms"`
	CollectedAt   time.Time `json:"collected_at"`
}

// ParseSnapshot turns raw probe output into a Snapshot. Sections may
// appear in any order; a missing or malformed section leaves its fields
// at zero. It never fails: the caller decides "no snapshot" based on the
// probe's exit code, not on parse results.
func ParseSnapshot(raw string) *Snapshot {
	snap := &Snapshot{}
	cpuFallback := false

	sections := strings.Split(raw, "===")
	for i, section := range sections {
		name := strings.TrimSpace(section)
		if name == "" || i+1 >= len(sections) {
			continue
		}
		body := strings.TrimSpace(sections[i+1])

		switch name {
		case "CPU":
			lines := strings.Split(body, "\n")
			if len(lines) >= 2 {
				fields := strings.Fields(lines[0])
				if len(fields) > 0 {
					snap.Load1, _ = strconv.ParseFloat(fields[0], 64)
				}
				snap.CPUCores, _ = strconv.Atoi(strings.TrimSpace(lines[1]))
			}
		case "MEM":
			fields := strings.Fields(body)
			if len(fields) >= 3 {
				snap.RAMTotal, _ = strconv.ParseInt(fields[1], 10, 64)
				snap.RAMUsed, _ = strconv.ParseInt(fields[2], 10, 64)
				if snap.RAMTotal > 0 {
					snap.RAMPercent = float64(snap.RAMUsed) / float64(snap.RAMTotal) * 100
				}
			}
		case "DISK":
			fields := strings.Fields(body)
			if len(fields) >= 4 {
				snap.DiskTotal, _ = strconv.ParseInt(fields[1], 10, 64)
				snap.DiskUsed, _ = strconv.ParseInt(fields[2], 10, 64)
				if snap.DiskTotal > 0 {
					snap.DiskPercent = float64(snap.DiskUsed) / float64(snap.DiskTotal) * 100
				}
			}
		case "UPTIME":
			fields := strings.Fields(body)
			if len(fields) > 0 {
				secs, err := strconv.ParseFloat(fields[0], 64)
				if err == nil {
					snap.UptimeSeconds = int64(secs)
				}
			}
		case "CPU_PERCENT":
			// top prints a locale decimal: "12.5" or "12,5".
			value, err := strconv.ParseFloat(strings.ReplaceAll(body, ",", "."), 64)
			if err == nil {
				snap.CPUPercent = value
			} else {
				cpuFallback = true
			}
		}
	}

	// Approximate CPU usage from load when top's figure was unparsable.
	if cpuFallback {
		cores := snap.CPUCores
		if cores < 1 {
			cores = 1
		}
		snap.CPUPercent = snap.Load1 / float64(cores) * 100
	}

	return snap
}
