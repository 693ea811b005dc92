package sessioncredit_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sc "github.com/ineyio/sessioncredit"
)

// assertBucketInvariant checks USED_* >= REPORTED_* + REPORTING_* per direction.
func assertBucketInvariant(t *testing.T, l *sc.Ledger) {
	t.Helper()
	assert.GreaterOrEqual(t, l.Credit(sc.UsedTx), l.Credit(sc.ReportedTx)+l.Credit(sc.ReportingTx))
	assert.GreaterOrEqual(t, l.Credit(sc.UsedRx), l.Credit(sc.ReportedRx)+l.Credit(sc.ReportingRx))
}

func TestAddUsedCredit_Accumulates(t *testing.T) {
	l := sc.NewLedger(sc.Config{})

	deltas := []struct{ tx, rx uint64 }{{10, 5}, {0, 0}, {90, 45}, {1, 1}}
	var wantTx, wantRx uint64
	for _, d := range deltas {
		l.AddUsedCredit(d.tx, d.rx)
		wantTx += d.tx
		wantRx += d.rx
		assert.Equal(t, wantTx, l.Credit(sc.UsedTx))
		assert.Equal(t, wantRx, l.Credit(sc.UsedRx))
		assertBucketInvariant(t, l)
	}
}

func TestUpdateType_FreshLedgerIsExhausted(t *testing.T) {
	// A ledger with no grant yet is immediately due, which is what drives
	// the initial quota request (a zero-usage report).
	l := sc.NewLedger(sc.Config{})
	assert.Equal(t, sc.UpdateQuotaExhausted, l.UpdateType())

	usage, err := l.UsageForReporting(false)
	require.NoError(t, err)
	assert.Equal(t, sc.Usage{}, usage)
	assert.True(t, l.IsReporting())
	assert.Equal(t, sc.UpdateNone, l.UpdateType())
}

func TestReportGrantRoundTrip(t *testing.T) {
	l := sc.NewLedger(sc.Config{})
	l.AddUsedCredit(100, 50)

	assert.Equal(t, sc.UpdateQuotaExhausted, l.UpdateType())

	usage, err := l.UsageForReporting(false)
	require.NoError(t, err)
	assert.Equal(t, sc.Usage{BytesTx: 100, BytesRx: 50}, usage)
	assert.True(t, l.IsReporting())
	assertBucketInvariant(t, l)

	// A second snapshot while one is outstanding is rejected.
	_, err = l.UsageForReporting(false)
	assert.ErrorIs(t, err, sc.ErrReportInFlight)

	l.ReceiveCredit(sc.Grant{TotalVolume: 200})

	assert.Equal(t, uint64(100), l.Credit(sc.ReportedTx))
	assert.Equal(t, uint64(50), l.Credit(sc.ReportedRx))
	assert.Equal(t, uint64(0), l.Credit(sc.ReportingTx))
	assert.Equal(t, uint64(0), l.Credit(sc.ReportingRx))
	assert.Equal(t, uint64(200), l.Credit(sc.AllowedTotal))
	assert.False(t, l.IsReporting())
	assert.Equal(t, sc.UpdateNone, l.UpdateType())
	assertBucketInvariant(t, l)
}

func TestTransientFailure_RetriesSameDelta(t *testing.T) {
	l := sc.NewLedger(sc.Config{})
	l.AddUsedCredit(100, 50)

	_, err := l.UsageForReporting(false)
	require.NoError(t, err)

	l.ResetReportingCredit()

	assert.Equal(t, uint64(100), l.Credit(sc.UsedTx))
	assert.Equal(t, uint64(50), l.Credit(sc.UsedRx))
	assert.Equal(t, uint64(0), l.Credit(sc.ReportingTx))
	assert.False(t, l.IsReporting())
	assertBucketInvariant(t, l)

	// The delta is outstanding again and immediately re-triggers.
	assert.Equal(t, sc.UpdateQuotaExhausted, l.UpdateType())
	usage, err := l.UsageForReporting(false)
	require.NoError(t, err)
	assert.Equal(t, sc.Usage{BytesTx: 100, BytesRx: 50}, usage)
}

func TestMarkFailure_TerminatesRegardlessOfQuota(t *testing.T) {
	l := sc.NewLedger(sc.Config{})
	l.ReceiveCredit(sc.Grant{TotalVolume: 1 << 40})

	l.MarkFailure()

	assert.Equal(t, sc.TerminateService, l.Action())
	assert.Equal(t, sc.UpdateNone, l.UpdateType())
}

func TestFinalGrant_ExhaustionIsTerminal(t *testing.T) {
	l := sc.NewLedger(sc.Config{})
	l.AddUsedCredit(100, 50)

	_, err := l.UsageForReporting(false)
	require.NoError(t, err)
	l.ReceiveCredit(sc.Grant{TotalVolume: 200, IsFinal: true})

	assert.Equal(t, sc.ContinueService, l.Action())

	// Burn through the final grant.
	l.AddUsedCredit(40, 10)
	assert.Equal(t, sc.TerminateService, l.Action())

	// Exhaustion never triggers another request once the grant is final.
	assert.Equal(t, sc.UpdateNone, l.UpdateType())
}

func TestReauth_TakesPriority(t *testing.T) {
	l := sc.NewLedger(sc.Config{})
	l.AddUsedCredit(10, 10)
	_, err := l.UsageForReporting(false)
	require.NoError(t, err)
	l.ReceiveCredit(sc.Grant{TotalVolume: 1000, Validity: time.Hour})

	require.Equal(t, sc.UpdateNone, l.UpdateType())

	l.Reauth()
	assert.Equal(t, sc.UpdateReauthRequired, l.UpdateType())

	// Taking the snapshot moves reauth to processing and a grant clears it.
	_, err = l.UsageForReporting(false)
	require.NoError(t, err)
	assert.Equal(t, sc.UpdateNone, l.UpdateType())

	l.ReceiveCredit(sc.Grant{TotalVolume: 1000})
	assert.Equal(t, sc.UpdateNone, l.UpdateType())
}

func TestReauth_TransientFailureRetriggers(t *testing.T) {
	l := sc.NewLedger(sc.Config{})
	l.ReceiveCredit(sc.Grant{TotalVolume: 1000})
	l.AddUsedCredit(10, 10)

	l.Reauth()
	_, err := l.UsageForReporting(false)
	require.NoError(t, err)

	l.ResetReportingCredit()

	// The failed forced report must re-trigger, not stay stuck in processing.
	assert.Equal(t, sc.UpdateReauthRequired, l.UpdateType())
}

func TestOverageTolerance(t *testing.T) {
	l := sc.NewLedger(sc.Config{MaxOverage: 100})
	l.AddUsedCredit(10, 10)
	_, err := l.UsageForReporting(false)
	require.NoError(t, err)
	l.ReceiveCredit(sc.Grant{TotalVolume: 200})

	// Over the allowance but inside the tolerance: keep flowing, even with
	// a report outstanding.
	l.AddUsedCredit(230, 0) // used 250 vs allowed 200
	_, err = l.UsageForReporting(false)
	require.NoError(t, err)
	assert.Equal(t, sc.ContinueService, l.Action())

	// Past the tolerance: restrict.
	l.AddUsedCredit(60, 0) // used 310 vs allowed 200 + 100
	assert.Equal(t, sc.RestrictAccess, l.Action())
}

func TestValidityTimerExpiry(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	l := sc.NewLedger(sc.Config{}, sc.WithClock(clock))

	l.AddUsedCredit(10, 0)
	_, err := l.UsageForReporting(false)
	require.NoError(t, err)
	l.ReceiveCredit(sc.Grant{TotalVolume: 1000, Validity: time.Hour})

	require.Equal(t, sc.UpdateNone, l.UpdateType())

	now = now.Add(2 * time.Hour)
	assert.Equal(t, sc.UpdateValidityTimerExpired, l.UpdateType())

	// A fresh grant resets the timer.
	_, err = l.UsageForReporting(false)
	require.NoError(t, err)
	l.ReceiveCredit(sc.Grant{TotalVolume: 1000, Validity: time.Hour})
	assert.Equal(t, sc.UpdateNone, l.UpdateType())
}

func TestUsageReportingLimit_SpreadsLargeBursts(t *testing.T) {
	l := sc.NewLedger(sc.Config{UsageReportingLimit: 100})
	l.AddUsedCredit(250, 40)

	usage, err := l.UsageForReporting(false)
	require.NoError(t, err)
	assert.Equal(t, sc.Usage{BytesTx: 100, BytesRx: 40}, usage)
	assertBucketInvariant(t, l)

	l.ReceiveCredit(sc.Grant{})

	// The remainder stays outstanding and is captured by the next report.
	usage, err = l.UsageForReporting(false)
	require.NoError(t, err)
	assert.Equal(t, sc.Usage{BytesTx: 100, BytesRx: 0}, usage)

	l.ReceiveCredit(sc.Grant{})

	usage, err = l.UsageForReporting(false)
	require.NoError(t, err)
	assert.Equal(t, sc.Usage{BytesTx: 50, BytesRx: 0}, usage)
	assertBucketInvariant(t, l)
}

func TestTerminationReport_BypassesLimitAndThresholds(t *testing.T) {
	l := sc.NewLedger(sc.Config{UsageReportingLimit: 100})
	l.AddUsedCredit(10, 5)
	_, err := l.UsageForReporting(false)
	require.NoError(t, err)
	l.ReceiveCredit(sc.Grant{TotalVolume: 1 << 30})

	// Nothing is due, but termination forces a final report.
	require.Equal(t, sc.UpdateNone, l.UpdateType())

	l.AddUsedCredit(500, 200)
	usage, err := l.UsageForReporting(true)
	require.NoError(t, err)
	assert.Equal(t, sc.Usage{BytesTx: 500, BytesRx: 200}, usage)
}

func TestNoUpdateDue_SnapshotRejected(t *testing.T) {
	l := sc.NewLedger(sc.Config{})
	l.AddUsedCredit(10, 0)
	_, err := l.UsageForReporting(false)
	require.NoError(t, err)
	l.ReceiveCredit(sc.Grant{TotalVolume: 1000})

	_, err = l.UsageForReporting(false)
	assert.ErrorIs(t, err, sc.ErrNoUpdateDue)
}

func TestPerDirectionAllowance(t *testing.T) {
	l := sc.NewLedger(sc.Config{})
	_, err := l.UsageForReporting(false)
	require.NoError(t, err)
	l.ReceiveCredit(sc.Grant{TotalVolume: 1000, TxVolume: 100, RxVolume: 500})

	l.AddUsedCredit(100, 0)

	// The tx allowance is spent even though the total is not.
	assert.Equal(t, sc.UpdateQuotaExhausted, l.UpdateType())
}

func TestServiceStateTransitions(t *testing.T) {
	l := sc.NewLedger(sc.Config{MaxOverage: 10})

	require.Equal(t, sc.ServiceEnabled, l.ServiceState())

	// Overspend past the tolerance: a deactivation becomes pending.
	l.AddUsedCredit(100, 0)
	assert.Equal(t, sc.RestrictAccess, l.Action())
	assert.Equal(t, sc.ServiceNeedsDeactivation, l.ServiceState())

	l.MarkActionApplied(sc.RestrictAccess)
	assert.Equal(t, sc.ServiceDisabled, l.ServiceState())

	// A grant restores quota: a reactivation becomes pending.
	_, err := l.UsageForReporting(false)
	require.NoError(t, err)
	l.ReceiveCredit(sc.Grant{TotalVolume: 1000})
	assert.Equal(t, sc.ContinueService, l.Action())
	assert.Equal(t, sc.ServiceNeedsActivation, l.ServiceState())

	l.MarkActionApplied(sc.ContinueService)
	assert.Equal(t, sc.ServiceEnabled, l.ServiceState())
}

func TestSnapshotRestore_RoundTrip(t *testing.T) {
	l := sc.NewLedger(sc.Config{})
	l.AddUsedCredit(100, 50)
	_, err := l.UsageForReporting(false)
	require.NoError(t, err)

	snap := l.Snapshot()
	restored := sc.RestoreLedger(snap, sc.Config{})

	for _, b := range []sc.Bucket{
		sc.UsedTx, sc.UsedRx, sc.AllowedTotal, sc.AllowedTx, sc.AllowedRx,
		sc.ReportingTx, sc.ReportingRx, sc.ReportedTx, sc.ReportedRx,
	} {
		assert.Equal(t, l.Credit(b), restored.Credit(b), "bucket %s", b)
	}
	assert.Equal(t, l.IsReporting(), restored.IsReporting())
	assert.Equal(t, l.ServiceState(), restored.ServiceState())

	// The restored ledger still refuses a second snapshot.
	_, err = restored.UsageForReporting(false)
	assert.ErrorIs(t, err, sc.ErrReportInFlight)
}

func TestConcurrentIngestAndGrants(t *testing.T) {
	l := sc.NewLedger(sc.Config{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			l.AddUsedCredit(1, 1)
		}
	}()

	for i := 0; i < 100; i++ {
		if _, err := l.UsageForReporting(false); err == nil {
			l.ReceiveCredit(sc.Grant{TotalVolume: 10})
		}
		_ = l.Action()
	}
	<-done

	assert.Equal(t, uint64(1000), l.Credit(sc.UsedTx))
	assert.Equal(t, uint64(1000), l.Credit(sc.UsedRx))
	assertBucketInvariant(t, l)
}
