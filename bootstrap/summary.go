package bootstrap

import (
	"fmt"
	"sort"
	"time"

	"github.com/kbukum/hostkit/health"
)

// Summary displays the outcome of host assembly.
type Summary struct {
	serviceName     string
	version         string
	startupDuration time.Duration
}

// NewSummary creates a new summary for a service.
func NewSummary(serviceName, version string) *Summary {
	return &Summary{
		serviceName: serviceName,
		version:     version,
	}
}

// SetStartupDuration records the assembly time.
func (s *Summary) SetStartupDuration(d time.Duration) {
	s.startupDuration = d
}

// StartupDuration returns the recorded assembly time.
func (s *Summary) StartupDuration() time.Duration {
	return s.startupDuration
}

// DisplaySummary prints built, disabled and failed components, the
// registered extensions and the latest health report.
func (s *Summary) DisplaySummary(env *Environment) {
	fmt.Printf("\n")
	fmt.Printf("🚀 %s v%s assembled in %.2fs\n", s.serviceName, s.version, s.startupDuration.Seconds())
	if env.Identity != nil {
		fmt.Printf("   %s\n", env.Identity.String())
	}
	fmt.Printf("\n")

	total := len(env.Built) + len(env.Disablements) + len(env.Failures)
	if total == 0 {
		fmt.Printf("   └── No components assembled\n")
	} else {
		fmt.Printf("📦 Components\n")
		i := 0
		for _, name := range env.Built {
			i++
			fmt.Printf("   %s ✅ %s\n", treePrefix(i, total), name)
		}
		for _, d := range env.Disablements {
			i++
			fmt.Printf("   %s ⏸️ %s: %s\n", treePrefix(i, total), d.Component, d.Reason)
		}
		for _, f := range env.Failures {
			i++
			fmt.Printf("   %s ❌ %s: %v\n", treePrefix(i, total), f.Component, f.Err)
		}
	}

	if env.Extensions != nil {
		entries := env.Extensions.All()
		if len(entries) > 0 {
			fmt.Printf("\n🧩 Extensions (%d)\n", len(entries))
			for i, e := range entries {
				fmt.Printf("   %s %s\n", treePrefix(i+1, len(entries)), e.Type.String())
			}
		}
	}

	if env.Health != nil {
		names := env.Health.Checks()
		if len(names) > 0 {
			report := env.Health.CurrentReport()
			sort.Strings(names)
			fmt.Printf("\n🏥 Health Checks (every %s)\n", env.Health.Settings().CheckInterval)
			for i, name := range names {
				line := "pending"
				icon := "⏳"
				if c, ok := report.Checks[name]; ok {
					icon = healthStatusIcon(c.Status)
					line = c.Status.String()
					if c.Reason != "" {
						line += " — " + c.Reason
					}
				}
				fmt.Printf("   %s %s %s: %s\n", treePrefix(i+1, len(names)), icon, name, line)
			}
		}
	}

	fmt.Printf("\n")
}

func treePrefix(i, total int) string {
	if i == total {
		return "└──"
	}
	return "├──"
}

func healthStatusIcon(status health.Status) string {
	switch status {
	case health.StatusHealthy:
		return "✅"
	case health.StatusDegraded:
		return "⚠️"
	case health.StatusFailing:
		return "❌"
	default:
		return "❓"
	}
}
