package diagnostic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiagnostics(t *testing.T) {
	var d Diagnostics

	require.NoError(t, d.Error())

	d.AddInfo(CodeKnowledgeBaseHit, "reused Sales", StageKB, "rev")
	d.AddWarning(CodeAmbiguous, "close call", StageNormalize, "value", "Amount", "Sales")

	var other Diagnostics
	other.AddError(CodeRequiredMissing, "no Date column", StageMerge, "")
	d.Merge(other)

	assert.True(t, d.HasErrors())
	assert.Len(t, d.ByCode(CodeAmbiguous), 1)
	assert.Empty(t, d.ByCode(CodeCollision))
	assert.EqualError(t, d.Error(), "[merge]: [required_missing] no Date column")

	assert.Equal(t,
		`[normalize] "value": [ambiguous] close call (consider: Amount, Sales)`,
		d.Warnings[0].String())
	assert.Equal(t, "[kb] \"rev\": [kb_hit] reused Sales", d.Infos[0].String())
}

func TestSeverityString(t *testing.T) {
	assert.Equal(t, "info", SeverityInfo.String())
	assert.Equal(t, "warning", SeverityWarning.String())
	assert.Equal(t, "error", SeverityError.String())
	assert.Equal(t, "unknown", Severity(42).String())
}
