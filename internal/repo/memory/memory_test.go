package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hamed0406/apimonitor/internal/domain"
	"github.com/hamed0406/apimonitor/internal/repo"
)

func TestMemoryStore_AddAndListTargets(t *testing.T) {
	ctx := context.Background()
	s := New()

	tgt := &domain.Target{Name: "example", URL: "https://example.com"}
	if err := s.Add(ctx, tgt); err != nil {
		t.Fatalf("Add target: %v", err)
	}
	if tgt.ID == "" || tgt.CreatedAt.IsZero() {
		t.Fatalf("expected ID and CreatedAt to be set: %+v", tgt)
	}

	all, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 1 || all[0].URL != "https://example.com" {
		t.Fatalf("unexpected list: %+v", all)
	}

	// mutating the listed copy must not leak into the store
	all[0].URL = "https://changed"
	got, _ := s.Get(ctx, tgt.ID)
	if got.URL != "https://example.com" {
		t.Fatalf("store leaked internal pointer")
	}
}

func TestMemoryStore_DuplicatesAndNotFound(t *testing.T) {
	ctx := context.Background()
	s := New()
	_ = s.Add(ctx, &domain.Target{ID: "A", Name: "a", URL: "https://a"})

	if err := s.Add(ctx, &domain.Target{ID: "A", Name: "other", URL: "https://x"}); !errors.Is(err, repo.ErrDuplicate) {
		t.Fatalf("duplicate id: want ErrDuplicate, got %v", err)
	}
	if err := s.Add(ctx, &domain.Target{ID: "B", Name: "a", URL: "https://x"}); !errors.Is(err, repo.ErrDuplicate) {
		t.Fatalf("duplicate name: want ErrDuplicate, got %v", err)
	}
	if _, err := s.Get(ctx, "nope"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("Get unknown: want ErrNotFound, got %v", err)
	}
	if err := s.Update(ctx, &domain.Target{ID: "nope"}); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("Update unknown: want ErrNotFound, got %v", err)
	}
	if err := s.Remove(ctx, "nope"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("Remove unknown: want ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_HistoryWindowAndRemoveCascade(t *testing.T) {
	ctx := context.Background()
	s := New()
	tgt := &domain.Target{ID: "T1", Name: "t1", URL: "https://example.com"}
	_ = s.Add(ctx, tgt)

	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		o := &domain.CheckOutcome{TargetID: "T1", CheckedAt: base.Add(time.Duration(i) * time.Hour), Success: true}
		if err := s.AppendOutcome(ctx, o); err != nil {
			t.Fatalf("AppendOutcome: %v", err)
		}
	}
	_ = s.AppendTransition(ctx, &domain.TransitionEvent{TargetID: "T1", To: domain.StatusDown, At: base.Add(30 * time.Minute)})
	_ = s.AppendTransition(ctx, &domain.TransitionEvent{TargetID: "T1", To: domain.StatusUp, At: base.Add(3 * time.Hour)})

	got, _ := s.Outcomes(ctx, "T1", base.Add(time.Hour), base.Add(3*time.Hour))
	if len(got) != 2 {
		t.Fatalf("want 2 outcomes in [1h,3h), got %d", len(got))
	}
	last, _ := s.LastTransitionBefore(ctx, "T1", base.Add(2*time.Hour))
	if last == nil || last.To != domain.StatusDown {
		t.Fatalf("want DOWN as last transition before 2h, got %+v", last)
	}

	_ = s.SaveState(ctx, &domain.TargetState{TargetID: "T1", Status: domain.StatusUp})
	if err := s.Remove(ctx, "T1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if got, _ := s.Outcomes(ctx, "T1", base, base.Add(24*time.Hour)); len(got) != 0 {
		t.Fatalf("history should be gone after Remove")
	}
	if st, _ := s.GetState(ctx, "T1"); st != nil {
		t.Fatalf("state should be gone after Remove")
	}
}

func TestMemoryStore_StatesAndAlerts(t *testing.T) {
	ctx := context.Background()
	s := New()

	out := domain.CheckOutcome{TargetID: "T1", Success: false}
	st := &domain.TargetState{TargetID: "T1", Status: domain.StatusDown, ConsecutiveFailure: 4, LastOutcome: &out}
	if err := s.SaveState(ctx, st); err != nil {
		t.Fatalf("SaveState: %v", err)
	}
	all, _ := s.LoadStates(ctx)
	if all["T1"].Status != domain.StatusDown || all["T1"].ConsecutiveFailure != 4 {
		t.Fatalf("unexpected loaded state: %+v", all["T1"])
	}

	if rec, err := s.GetAlert(ctx, "T1"); err != nil || rec != nil {
		t.Fatalf("expected no alert record, got %+v err=%v", rec, err)
	}
	now := time.Now()
	_ = s.SetAlert(ctx, "T1", domain.StatusDown, now)
	rec, _ := s.GetAlert(ctx, "T1")
	if rec == nil || rec.LastStatus != domain.StatusDown || rec.LastSentAt == nil {
		t.Fatalf("unexpected alert record: %+v", rec)
	}
	_ = s.SetAlert(ctx, "T1", domain.StatusUp, time.Time{})
	rec, _ = s.GetAlert(ctx, "T1")
	if rec.LastSentAt != nil {
		t.Fatalf("zero sentAt should clear LastSentAt")
	}
}
