package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/PortNumber53/trialgate/internal/models"
)

func newBoltStore(t *testing.T) *BoltStore {
	t.Helper()
	s, err := NewBolt(filepath.Join(t.TempDir(), "entitlements.db"))
	if err != nil {
		t.Fatalf("failed to open bolt store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func backends(t *testing.T) map[string]Store {
	return map[string]Store{
		"memory": NewMemory(),
		"bolt":   newBoltStore(t),
	}
}

func TestNewBoltValidation(t *testing.T) {
	if _, err := NewBolt(""); err == nil {
		t.Fatal("expected error when path is empty")
	}
}

func TestGetAbsentRecord(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			record, err := s.Get(context.Background(), "nobody@example.com")
			if err != nil {
				t.Fatalf("Get returned error: %v", err)
			}
			if record != nil {
				t.Fatalf("expected nil record, got %+v", record)
			}
		})
	}
}

func TestPutThenGet(t *testing.T) {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	want := models.Record{
		HasPaid:      true,
		TrialStarted: models.TimePtr(started),
		Subscription: &models.Subscription{
			Status:          models.SubscriptionActive,
			NextBillingDate: started.Add(30 * 24 * time.Hour),
			ProductID:       "pdt_test",
			StartedAt:       started,
		},
	}

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := s.Put(ctx, "a@x.com", want); err != nil {
				t.Fatalf("Put returned error: %v", err)
			}

			got, err := s.Get(ctx, "a@x.com")
			if err != nil {
				t.Fatalf("Get returned error: %v", err)
			}
			if got == nil {
				t.Fatal("expected record, got nil")
			}
			if !got.HasPaid || !got.TrialStarted.Equal(started) {
				t.Fatalf("unexpected record: %+v", got)
			}
			if got.Subscription == nil || got.Subscription.ProductID != "pdt_test" {
				t.Fatalf("unexpected subscription: %+v", got.Subscription)
			}
			if got.PaymentDate != nil {
				t.Fatalf("expected absent payment date, got %v", got.PaymentDate)
			}
		})
	}
}

func TestUpdateCreatesAndMutates(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			var sawNil bool
			_, err := s.Update(ctx, "b@x.com", func(current *models.Record) (models.Record, error) {
				sawNil = current == nil
				return models.Record{HasPaid: true}, nil
			})
			if err != nil {
				t.Fatalf("Update returned error: %v", err)
			}
			if !sawNil {
				t.Fatal("expected nil current record on first update")
			}

			result, err := s.Update(ctx, "b@x.com", func(current *models.Record) (models.Record, error) {
				if current == nil || !current.HasPaid {
					t.Fatalf("expected stored record, got %+v", current)
				}
				next := *current
				next.HasPaid = false
				return next, nil
			})
			if err != nil {
				t.Fatalf("Update returned error: %v", err)
			}
			if result.HasPaid {
				t.Fatal("expected update result to carry HasPaid=false")
			}

			got, _ := s.Get(ctx, "b@x.com")
			if got == nil || got.HasPaid {
				t.Fatalf("expected persisted HasPaid=false, got %+v", got)
			}
		})
	}
}

func TestUpdateNoChangeSkipsWrite(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			result, err := s.Update(ctx, "c@x.com", func(current *models.Record) (models.Record, error) {
				return models.Record{}, ErrNoChange
			})
			if err != nil {
				t.Fatalf("Update returned error: %v", err)
			}
			if result.HasPaid || result.TrialStarted != nil {
				t.Fatalf("expected zero record, got %+v", result)
			}

			got, err := s.Get(ctx, "c@x.com")
			if err != nil {
				t.Fatalf("Get returned error: %v", err)
			}
			if got != nil {
				t.Fatalf("expected no record to be written, got %+v", got)
			}
		})
	}
}

func TestUpdatePropagatesFuncError(t *testing.T) {
	boom := errors.New("boom")
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Update(context.Background(), "d@x.com", func(current *models.Record) (models.Record, error) {
				return models.Record{}, boom
			})
			if !errors.Is(err, boom) {
				t.Fatalf("expected boom, got %v", err)
			}
			if errors.Is(err, ErrUnavailable) {
				t.Fatal("mutate errors must not be reported as store unavailable")
			}
		})
	}
}

func TestUpdateIsAtomicPerIdentity(t *testing.T) {
	const writers = 50

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			var wg sync.WaitGroup
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := s.Update(ctx, "race@x.com", func(current *models.Record) (models.Record, error) {
						next := models.Record{}
						if current != nil {
							next = *current
						}
						// Use the subscription product id as a counter.
						if next.Subscription == nil {
							next.Subscription = &models.Subscription{}
						}
						next.Subscription.ProductID += "x"
						return next, nil
					})
					if err != nil {
						t.Errorf("Update returned error: %v", err)
					}
				}()
			}
			wg.Wait()

			got, err := s.Get(ctx, "race@x.com")
			if err != nil {
				t.Fatalf("Get returned error: %v", err)
			}
			if got == nil || len(got.Subscription.ProductID) != writers {
				t.Fatalf("expected %d applied updates, got %+v", writers, got)
			}
		})
	}
}

func TestMemoryStoreDoesNotAlias(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	started := time.Now().UTC()
	record := models.Record{TrialStarted: models.TimePtr(started)}
	if err := s.Put(ctx, "e@x.com", record); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	*record.TrialStarted = started.Add(time.Hour)

	got, _ := s.Get(ctx, "e@x.com")
	if !got.TrialStarted.Equal(started) {
		t.Fatalf("stored record changed through caller pointer: %v", got.TrialStarted)
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 record, got %d", s.Len())
	}
}
