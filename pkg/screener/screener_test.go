package screener

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_SafeCode(t *testing.T) {
	src := `
import pandas as pd
import numpy as np

df = pd.DataFrame({'a': [1, 2, 3]})
print(df.mean())
`
	report := Validate(src)
	assert.True(t, report.Safe)
	assert.Equal(t, RiskSafe, report.RiskLevel)
	assert.Empty(t, report.Violations)
}

func TestValidate_RejectsExec(t *testing.T) {
	src := `exec("print('hi')")`
	report := Validate(src)
	require.False(t, report.Safe)
	assert.Equal(t, RiskCritical, report.RiskLevel)
	assert.Contains(t, report.Violations, "blocked function call: exec()")
}

func TestValidate_RejectsImportOS(t *testing.T) {
	src := "import os\nos.system('rm -rf /')"
	report := Validate(src)
	require.False(t, report.Safe)
	assert.Equal(t, RiskCritical, report.RiskLevel)
	assert.Contains(t, report.Violations, "blocked import: os")
}

func TestValidate_RejectsAttributeFormCall(t *testing.T) {
	src := "data_file.open('/etc/passwd')"
	report := Validate(src)
	require.False(t, report.Safe)
	assert.Contains(t, report.Violations, "blocked function call: open()")
}

func TestValidate_FromImportBlocked(t *testing.T) {
	src := "from subprocess import call\ncall(['ls'])"
	report := Validate(src)
	require.False(t, report.Safe)
	assert.Contains(t, report.Violations, "blocked import from: subprocess")
}

func TestValidate_WarningThresholds(t *testing.T) {
	// Exactly 5 distinct-warning-producing patterns -> low.
	five := "getattr(x, 'y')\nsetattr(x, 'y', 1)\ndelattr(x, 'y')\nglobals()\nlocals()"
	report := Validate(five)
	assert.True(t, report.Safe)
	assert.Equal(t, RiskLow, report.RiskLevel)

	six := five + "\nvars()\ndir()"
	report = Validate(six)
	assert.False(t, report.Safe)
	assert.Equal(t, RiskMedium, report.RiskLevel)
}

func TestValidate_SyntaxError(t *testing.T) {
	src := "def f(:\n    pass"
	report := Validate(src)
	require.False(t, report.Safe)
	assert.Equal(t, RiskCritical, report.RiskLevel)
	require.Len(t, report.Violations, 1)
	assert.Contains(t, report.Violations[0], "syntax error")
}

func TestValidate_FileOperationIsWarningNotViolation(t *testing.T) {
	src := "Path('/sandbox/outputs/x.txt').write_text('hi')"
	report := Validate(src)
	assert.Empty(t, report.Violations)
	assert.NotEmpty(t, report.Warnings)
}

func TestValidate_SafeDunderExcluded(t *testing.T) {
	src := `
def main():
    pass

if __name__ == "__main__":
    main()
`
	report := Validate(src)
	assert.True(t, report.Safe)
	assert.Empty(t, report.Warnings)
}
