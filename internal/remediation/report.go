// SPDX-License-Identifier: Apache-2.0

package remediation

import (
	"fmt"
	"strings"
	"time"

	"github.com/jdyer-nuvodia/lockdown/internal/core/format"
	"github.com/jdyer-nuvodia/lockdown/internal/core/models"
)

// Summary renders the human-readable run summary, one line per step.
func Summary(report *models.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Remediation summary for %s:\n", report.Target)
	for _, e := range report.Entries {
		status := "Success"
		if !e.Outcome.Succeeded {
			status = "Failed"
		}
		if e.Outcome.Detail != "" {
			fmt.Fprintf(&b, "  %-20s %s - %s\n", e.StepName, status, e.Outcome.Detail)
		} else {
			fmt.Fprintf(&b, "  %-20s %s\n", e.StepName, status)
		}
	}
	fmt.Fprintf(&b, "%d successful, %d failed (out of %d total steps)\n",
		report.SucceededCount(), report.FailedCount(), len(report.Entries))
	return b.String()
}

// WriteReportFile persists the report (YAML or JSON by extension).
func WriteReportFile(filePath string, report *models.Report) error {
	if err := format.WriteFile(filePath, report); err != nil {
		return fmt.Errorf("error writing report: %w", err)
	}
	return nil
}

// ReportFileName returns a filesystem-safe report name for the target and
// run start time.
func ReportFileName(target models.TargetIdentity, startedAt time.Time) string {
	return fmt.Sprintf("remediation-%s-%s.yaml", SafeName(target), startedAt.Format("20060102-150405"))
}

// SafeName reduces an identity to characters safe in a file name.
func SafeName(target models.TargetIdentity) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			return r
		default:
			return '_'
		}
	}, string(target))
}
