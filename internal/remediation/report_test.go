// SPDX-License-Identifier: Apache-2.0

package remediation_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdyer-nuvodia/lockdown/internal/core/format"
	"github.com/jdyer-nuvodia/lockdown/internal/core/models"
	"github.com/jdyer-nuvodia/lockdown/internal/remediation"
)

func sampleReport() *models.Report {
	report := &models.Report{Target: testTarget, StartedAt: testNow, CompletedAt: testNow}
	report.Append(remediation.StepResetCredential, models.StepOutcome{Succeeded: true, Detail: "credential replaced"})
	report.Append(remediation.StepRevokeSessions, models.StepOutcome{Succeeded: false, Detail: "identity not found"})
	return report
}

func TestSummary(t *testing.T) {
	out := remediation.Summary(sampleReport())

	assert.Contains(t, out, "Remediation summary for jdoe@example.com")
	assert.Contains(t, out, "reset-credential")
	assert.Contains(t, out, "Success - credential replaced")
	assert.Contains(t, out, "Failed - identity not found")
	assert.Contains(t, out, "1 successful, 1 failed (out of 2 total steps)")
}

func TestWriteReportFileRoundTrip(t *testing.T) {
	report := sampleReport()
	path := filepath.Join(t.TempDir(), remediation.ReportFileName(report.Target, report.StartedAt))

	require.NoError(t, remediation.WriteReportFile(path, report))

	var got models.Report
	require.NoError(t, format.ParseFile(path, &got))
	assert.Equal(t, report.Target, got.Target)
	require.Len(t, got.Entries, 2)
	assert.Equal(t, report.Entries[1].Outcome, got.Entries[1].Outcome)
}

func TestReportFileName(t *testing.T) {
	name := remediation.ReportFileName("jdoe@example.com", testNow)

	assert.Equal(t, "remediation-jdoe_example.com-20250310-120000.yaml", name)
}

func TestSafeName(t *testing.T) {
	assert.Equal(t, "jdoe_example.com", remediation.SafeName("jdoe@example.com"))
	assert.Equal(t, "a_b_c", remediation.SafeName("a/b c"))
}
