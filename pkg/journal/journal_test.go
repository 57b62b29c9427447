package journal

import (
	"path/filepath"
	"testing"

	"github.com/fortiblox/X1-Sentry/pkg/account"
	"github.com/fortiblox/X1-Sentry/pkg/fixture"
	"github.com/fortiblox/X1-Sentry/pkg/harness"
)

func openJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(Config{Path: filepath.Join(t.TempDir(), "journal.db"), NoSync: true})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func sampleRecord(scenario string) *Record {
	return &Record{
		Scenario:    scenario,
		Instruction: "vault:withdraw_secure",
		Success:     false,
		Code:        harness.CodeNotSigner,
		Phase:       harness.StateValidating,
		Logs:        []string{"rejected"},
	}
}

func TestAppendAndGet(t *testing.T) {
	j := openJournal(t)

	seq, err := j.Append(sampleRecord("missing-signer"))
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if seq != 0 {
		t.Errorf("first seq = %d, want 0", seq)
	}

	rec, err := j.Get(seq)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec.Scenario != "missing-signer" || rec.Code != harness.CodeNotSigner {
		t.Errorf("Get = %+v", rec)
	}
	if rec.RecordedAt == 0 {
		t.Error("RecordedAt not assigned")
	}

	if _, err := j.Get(99); err != ErrRecordNotFound {
		t.Errorf("Get missing = %v, want ErrRecordNotFound", err)
	}
}

func TestByScenarioOrdered(t *testing.T) {
	j := openJournal(t)

	for i := 0; i < 3; i++ {
		if _, err := j.Append(sampleRecord("missing-signer")); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		if _, err := j.Append(sampleRecord("type-cosplay")); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	records, err := j.ByScenario("missing-signer")
	if err != nil {
		t.Fatalf("ByScenario failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("ByScenario returned %d records, want 3", len(records))
	}
	for i := 1; i < len(records); i++ {
		if records[i-1].Seq >= records[i].Seq {
			t.Errorf("records out of append order at %d", i)
		}
	}
	if j.Count() != 6 {
		t.Errorf("Count = %d, want 6", j.Count())
	}
}

func TestSeqSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := Open(Config{Path: path, NoSync: true})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := j.Append(sampleRecord("missing-signer")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	j, err = Open(Config{Path: path, NoSync: true})
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer j.Close()

	seq, err := j.Append(sampleRecord("missing-signer"))
	if err != nil {
		t.Fatalf("Append after reopen failed: %v", err)
	}
	if seq != 1 {
		t.Errorf("seq after reopen = %d, want 1", seq)
	}
}

func TestStateDigest(t *testing.T) {
	a := fixture.Wallet("alice")
	b := fixture.Wallet("bob")

	d1 := StateDigest([]*account.Account{a, b})
	d2 := StateDigest([]*account.Account{a.Clone(), b.Clone()})
	if d1 != d2 {
		t.Error("identical states should produce identical digests")
	}

	mutated := a.Clone()
	mutated.Lamports++
	if d3 := StateDigest([]*account.Account{mutated, b}); d3 == d1 {
		t.Error("mutated state should change the digest")
	}

	// Slot order matters.
	if d4 := StateDigest([]*account.Account{b, a}); d4 == d1 {
		t.Error("digest should be order sensitive")
	}
}

func TestFromOutcome(t *testing.T) {
	accounts := []*account.Account{fixture.Wallet("alice")}
	out := &harness.Outcome{
		Success:  true,
		Code:     harness.CodeNone,
		State:    harness.StateCompleted,
		Phase:    harness.StateExecuting,
		Logs:     []string{"ok"},
		Accounts: accounts,
	}

	rec := FromOutcome("sanity", "vault:deposit", out)
	if !rec.Success || rec.Code != harness.CodeNone || rec.Instruction != "vault:deposit" {
		t.Errorf("FromOutcome = %+v", rec)
	}
	if rec.StateDigest != StateDigest(accounts) {
		t.Error("StateDigest mismatch")
	}

	j := openJournal(t)
	if _, err := j.Append(rec); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	got, err := j.Get(rec.Seq)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.StateDigest != rec.StateDigest {
		t.Error("digest not preserved through the journal")
	}
}
