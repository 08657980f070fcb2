package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordEscalationCall(t *testing.T) {
	ok := testutil.ToFloat64(EscalationCalls.WithLabelValues(StatusSuccess))
	failed := testutil.ToFloat64(EscalationCalls.WithLabelValues(StatusFailure))

	RecordEscalationCall(true, 120*time.Millisecond)
	RecordEscalationCall(false, time.Second)
	RecordEscalationCall(false, 2*time.Second)

	assert.InDelta(t, ok+1, testutil.ToFloat64(EscalationCalls.WithLabelValues(StatusSuccess)), 1e-9)
	assert.InDelta(t, failed+2, testutil.ToFloat64(EscalationCalls.WithLabelValues(StatusFailure)), 1e-9)
	assert.Positive(t, testutil.CollectAndCount(EscalationLatency))
}

func TestRecordKBLookupAndMapping(t *testing.T) {
	hits := testutil.ToFloat64(KBLookups.WithLabelValues(LookupHit))
	RecordKBLookup(LookupHit)
	assert.InDelta(t, hits+1, testutil.ToFloat64(KBLookups.WithLabelValues(LookupHit)), 1e-9)

	before := testutil.ToFloat64(Mappings.WithLabelValues("knowledge_base"))
	RecordMapping("knowledge_base")
	RecordMapping("knowledge_base")
	assert.InDelta(t, before+2, testutil.ToFloat64(Mappings.WithLabelValues("knowledge_base")), 1e-9)
}
