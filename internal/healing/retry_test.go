package healing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/apppro/content-pipeline/internal/core/domain"
	"github.com/apppro/content-pipeline/internal/infra/storage/memory"
)

func newTestExecutor(store *memory.Store) (*Executor, *[]time.Duration) {
	var waits []time.Duration
	ex := NewExecutor(memory.NewErrorRepo(store))
	ex.sleep = func(d time.Duration) { waits = append(waits, d) }
	return ex, &waits
}

func collectFailure() Failure {
	return Failure{
		Component: domain.ComponentRSSCollector,
		Kind:      domain.ErrTimeout,
		Message:   "feed fetch timed out",
	}
}

// =============================================================================
// Immediate retry (L1)
// =============================================================================

func TestRetryImmediate_Success(t *testing.T) {
	store := memory.NewStore()
	ex, waits := newTestExecutor(store)
	errRepo := memory.NewErrorRepo(store)

	result, recordID, err := RetryImmediate(context.Background(), ex, collectFailure(), 5*time.Second,
		func(ctx context.Context) (int, error) { return 42, nil })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil || *result != 42 {
		t.Fatalf("expected result 42, got %v", result)
	}
	if len(*waits) != 1 || (*waits)[0] != 5*time.Second {
		t.Errorf("expected one 5s wait, got %v", *waits)
	}

	rec, err := errRepo.Get(context.Background(), recordID)
	if err != nil {
		t.Fatalf("record not found: %v", err)
	}
	if rec.FixResult != domain.FixSuccess {
		t.Errorf("expected fix result success, got %s", rec.FixResult)
	}
	if !rec.Resolved() {
		t.Error("expected record resolved")
	}
	if rec.FixAction != "immediate retry succeeded" {
		t.Errorf("unexpected action: %q", rec.FixAction)
	}
}

func TestRetryImmediate_Failure(t *testing.T) {
	store := memory.NewStore()
	ex, _ := newTestExecutor(store)
	errRepo := memory.NewErrorRepo(store)

	retryErr := errors.New("still down")
	result, recordID, err := RetryImmediate(context.Background(), ex, collectFailure(), 0,
		func(ctx context.Context) (int, error) { return 0, retryErr })
	if !errors.Is(err, retryErr) {
		t.Fatalf("expected retry error, got %v", err)
	}
	if result != nil {
		t.Fatalf("expected no result, got %v", *result)
	}

	rec, _ := errRepo.Get(context.Background(), recordID)
	if rec.FixResult != domain.FixFailed {
		t.Errorf("expected fix result failed, got %s", rec.FixResult)
	}
	if rec.Resolved() {
		t.Error("failed record must stay unresolved")
	}
}

func TestRetryImmediate_ZeroDelaySkipsWait(t *testing.T) {
	store := memory.NewStore()
	ex, waits := newTestExecutor(store)

	_, _, _ = RetryImmediate(context.Background(), ex, collectFailure(), 0,
		func(ctx context.Context) (int, error) { return 1, nil })
	if len(*waits) != 0 {
		t.Errorf("expected no waits, got %v", *waits)
	}
}

// =============================================================================
// Backoff retry (L2)
// =============================================================================

func TestRetryBackoff_DelaysDouble(t *testing.T) {
	store := memory.NewStore()
	ex, waits := newTestExecutor(store)

	attempts := 0
	_, _, _ = RetryBackoff(context.Background(), ex, collectFailure(), 3, time.Second,
		func(ctx context.Context) (int, error) {
			attempts++
			return 0, errors.New("nope")
		})

	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
	expected := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}
	if len(*waits) != len(expected) {
		t.Fatalf("expected %d waits, got %v", len(expected), *waits)
	}
	for i, want := range expected {
		if (*waits)[i] != want {
			t.Errorf("wait %d = %v, want %v", i+1, (*waits)[i], want)
		}
	}
	for i := 1; i < len(*waits); i++ {
		if (*waits)[i] <= (*waits)[i-1] {
			t.Errorf("waits must strictly increase: %v", *waits)
		}
	}
}

func TestRetryBackoff_SucceedsMidway(t *testing.T) {
	store := memory.NewStore()
	ex, _ := newTestExecutor(store)
	errRepo := memory.NewErrorRepo(store)

	attempts := 0
	result, recordID, err := RetryBackoff(context.Background(), ex, collectFailure(), 3, time.Second,
		func(ctx context.Context) (string, error) {
			attempts++
			if attempts < 2 {
				return "", errors.New("not yet")
			}
			return "ok", nil
		})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil || *result != "ok" {
		t.Fatalf("expected result ok, got %v", result)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}

	rec, _ := errRepo.Get(context.Background(), recordID)
	if rec.FixResult != domain.FixSuccess {
		t.Errorf("expected success, got %s", rec.FixResult)
	}
	if rec.FixAction != "backoff retry succeeded (attempt 2/3)" {
		t.Errorf("unexpected action: %q", rec.FixAction)
	}
}

func TestRetryBackoff_ExhaustionMarksFailed(t *testing.T) {
	store := memory.NewStore()
	ex, _ := newTestExecutor(store)
	errRepo := memory.NewErrorRepo(store)

	_, recordID, err := RetryBackoff(context.Background(), ex, collectFailure(), 2, 0,
		func(ctx context.Context) (int, error) { return 0, errors.New("permanent") })
	if err == nil {
		t.Fatal("expected error on exhaustion")
	}

	rec, _ := errRepo.Get(context.Background(), recordID)
	if rec.FixResult != domain.FixFailed {
		t.Errorf("expected failed, got %s", rec.FixResult)
	}
}

// =============================================================================
// Record bookkeeping invariants
// =============================================================================

func TestRetry_OneRecordPerInvocation(t *testing.T) {
	store := memory.NewStore()
	ex, _ := newTestExecutor(store)
	errRepo := memory.NewErrorRepo(store)

	_, _, _ = RetryBackoff(context.Background(), ex, collectFailure(), 3, 0,
		func(ctx context.Context) (int, error) { return 0, errors.New("nope") })

	// Three attempts, one record.
	unresolved, err := errRepo.ListUnresolved(context.Background(), 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(unresolved) != 1 {
		t.Fatalf("expected exactly one error record, got %d", len(unresolved))
	}
}

func TestRecordFix_ResolvedRecordIsImmutable(t *testing.T) {
	store := memory.NewStore()
	ex, _ := newTestExecutor(store)
	errRepo := memory.NewErrorRepo(store)

	_, recordID, err := RetryImmediate(context.Background(), ex, collectFailure(), 0,
		func(ctx context.Context) (int, error) { return 1, nil })
	if err != nil {
		t.Fatal(err)
	}

	before, _ := errRepo.Get(context.Background(), recordID)

	// A second terminal write must be rejected.
	if err := errRepo.RecordFix(context.Background(), recordID, domain.FixFailed, "overwrite attempt"); err == nil {
		t.Error("expected second resolve to be rejected")
	}

	after, _ := errRepo.Get(context.Background(), recordID)
	if *after != *before {
		t.Errorf("resolved record mutated: %+v vs %+v", after, before)
	}
}
