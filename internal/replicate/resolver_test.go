package replicate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/exponential-tech/unifier-mirror/internal/catalog"
)

type fakeCatalog struct {
	parts []catalog.Partition
	err   error
	calls int
}

func (f *fakeCatalog) ListAsOfDates(ctx context.Context, name string) ([]catalog.Partition, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.parts, nil
}

func date(s string) catalog.Date {
	d, err := catalog.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestResolveSortsAndClips(t *testing.T) {
	api := &fakeCatalog{parts: []catalog.Partition{
		{AsOfDate: date("2024-01-01"), Location: "loc-c"},
		{AsOfDate: date("2023-01-01"), Location: "loc-a"},
		{AsOfDate: date("2023-06-01"), Location: "loc-b"},
	}}

	got, err := NewResolver(api).Resolve(context.Background(), "prices", date("2023-06-01"), date("2024-01-01"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d partitions, want 2", len(got))
	}
	// Inclusive bounds, ascending order.
	if got[0].AsOfDate.String() != "2023-06-01" || got[1].AsOfDate.String() != "2024-01-01" {
		t.Errorf("dates = [%s, %s]", got[0].AsOfDate, got[1].AsOfDate)
	}
}

func TestResolveUnboundedRange(t *testing.T) {
	api := &fakeCatalog{parts: []catalog.Partition{
		{AsOfDate: date("2023-06-01")},
		{AsOfDate: date("2023-01-01")},
	}}

	got, err := NewResolver(api).Resolve(context.Background(), "prices", catalog.Date{}, catalog.Date{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d partitions, want all", len(got))
	}
	if !got[0].AsOfDate.Before(got[1].AsOfDate) {
		t.Error("partitions not ascending")
	}
}

func TestResolveDeduplicates(t *testing.T) {
	api := &fakeCatalog{parts: []catalog.Partition{
		{AsOfDate: date("2023-06-01"), Location: "first"},
		{AsOfDate: date("2023-06-01"), Location: "second"},
	}}

	got, err := NewResolver(api).Resolve(context.Background(), "prices", catalog.Date{}, catalog.Date{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d partitions, want 1", len(got))
	}
	if got[0].Location != "first" {
		t.Errorf("dedupe kept %q, want the first occurrence", got[0].Location)
	}
}

func TestResolveInvalidRangeBeforeNetwork(t *testing.T) {
	api := &fakeCatalog{}

	_, err := NewResolver(api).Resolve(context.Background(), "prices", date("2024-01-01"), date("2023-01-01"))
	if !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("error = %v, want ErrInvalidRange", err)
	}
	if api.calls != 0 {
		t.Errorf("catalog called %d times, range validation must come first", api.calls)
	}
}

func TestResolveEmptyDataset(t *testing.T) {
	api := &fakeCatalog{}

	_, err := NewResolver(api).Resolve(context.Background(), "", catalog.Date{}, catalog.Date{})
	if !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	if api.calls != 0 {
		t.Error("catalog should not be called for an empty name")
	}
}

func TestResolvePropagatesCatalogError(t *testing.T) {
	boom := errors.New("catalog down")
	api := &fakeCatalog{err: boom}

	_, err := NewResolver(api).Resolve(context.Background(), "prices", catalog.Date{}, catalog.Date{})
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want wrapped catalog error", err)
	}
}

func TestResolveSingleDayRange(t *testing.T) {
	api := &fakeCatalog{parts: []catalog.Partition{
		{AsOfDate: date("2023-06-01")},
		{AsOfDate: date("2023-06-02")},
	}}

	d := catalog.NewDate(2023, time.June, 1)
	got, err := NewResolver(api).Resolve(context.Background(), "prices", d, d)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(got) != 1 || !got[0].AsOfDate.Equal(d) {
		t.Fatalf("single-day range returned %+v", got)
	}
}
