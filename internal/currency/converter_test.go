package currency

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeProvider struct {
	rate     *float64
	err      error
	lastFrom string
	lastTo   string
	lastDate time.Time
	calls    int
}

func (f *fakeProvider) Rate(_ context.Context, from, to string, date time.Time) (*float64, error) {
	f.calls++
	f.lastFrom = from
	f.lastTo = to
	f.lastDate = date
	return f.rate, f.err
}

func TestToTTD(t *testing.T) {
	rate := 6.7891
	fp := &fakeProvider{rate: &rate}
	conv := NewConverter(fp)

	got, err := conv.ToTTD(context.Background(), 1000, "USD", 2023)
	if err != nil {
		t.Fatalf("ToTTD: %v", err)
	}
	if got == nil {
		t.Fatal("ToTTD returned nil value")
	}
	if *got != 6789.1 {
		t.Errorf("value: got %v, want 6789.1", *got)
	}
	if fp.lastFrom != "USD" || fp.lastTo != "TTD" {
		t.Errorf("provider pair: got %s->%s, want USD->TTD", fp.lastFrom, fp.lastTo)
	}
}

func TestToTTD_PricedAtJanuaryFirst(t *testing.T) {
	rate := 1.0
	fp := &fakeProvider{rate: &rate}
	conv := NewConverter(fp)

	if _, err := conv.ToTTD(context.Background(), 1, "USD", 2021); err != nil {
		t.Fatalf("ToTTD: %v", err)
	}

	want := time.Date(2021, time.January, 1, 0, 0, 0, 0, time.UTC)
	if !fp.lastDate.Equal(want) {
		t.Errorf("reference date: got %v, want %v", fp.lastDate, want)
	}
}

func TestToTTD_SourceAlreadyTTD(t *testing.T) {
	fp := &fakeProvider{err: errors.New("must not be called")}
	conv := NewConverter(fp)

	got, err := conv.ToTTD(context.Background(), 550000, "TTD", 2023)
	if err != nil {
		t.Fatalf("ToTTD: %v", err)
	}
	if got == nil || *got != 550000 {
		t.Errorf("value: got %v, want 550000", got)
	}
	if fp.calls != 0 {
		t.Errorf("provider calls: got %d, want 0", fp.calls)
	}
}

func TestToTTD_TTDSourceUnrounded(t *testing.T) {
	// The short-circuit path echoes the amount exactly; rounding only
	// applies to converted values.
	conv := NewConverter(&fakeProvider{})

	got, err := conv.ToTTD(context.Background(), 100.005, "TTD", 2023)
	if err != nil {
		t.Fatalf("ToTTD: %v", err)
	}
	if got == nil || *got != 100.005 {
		t.Errorf("value: got %v, want 100.005", got)
	}
}

func TestToTTD_MissingQuote(t *testing.T) {
	conv := NewConverter(&fakeProvider{})

	got, err := conv.ToTTD(context.Background(), 1000, "USD", 2023)
	if err != nil {
		t.Fatalf("ToTTD: %v", err)
	}
	if got != nil {
		t.Errorf("value: got %v, want nil", *got)
	}
}

func TestToTTD_ProviderError(t *testing.T) {
	fp := &fakeProvider{err: errors.New("upstream down")}
	conv := NewConverter(fp)

	_, err := conv.ToTTD(context.Background(), 1000, "USD", 2023)
	if err == nil {
		t.Fatal("ToTTD: want error")
	}
	if !errors.Is(err, fp.err) {
		t.Errorf("error not wrapped: %v", err)
	}
}

func TestToTTD_Rounding(t *testing.T) {
	tests := []struct {
		amount float64
		rate   float64
		want   float64
	}{
		{100, 0.33333, 33.33},
		{100, 0.33336, 33.34},
		{0, 6.8, 0},
		{1, 6.789999, 6.79},
	}

	for _, tt := range tests {
		fp := &fakeProvider{rate: &tt.rate}
		conv := NewConverter(fp)

		got, err := conv.ToTTD(context.Background(), tt.amount, "USD", 2023)
		if err != nil {
			t.Fatalf("ToTTD(%v * %v): %v", tt.amount, tt.rate, err)
		}
		if got == nil || *got != tt.want {
			t.Errorf("ToTTD(%v * %v): got %v, want %v", tt.amount, tt.rate, got, tt.want)
		}
	}
}

func TestSetProvider(t *testing.T) {
	first := &fakeProvider{err: errors.New("old provider")}
	conv := NewConverter(first)

	rate := 2.0
	second := &fakeProvider{rate: &rate}
	conv.SetProvider(second)

	got, err := conv.ToTTD(context.Background(), 10, "USD", 2023)
	if err != nil {
		t.Fatalf("ToTTD after SetProvider: %v", err)
	}
	if got == nil || *got != 20 {
		t.Errorf("value: got %v, want 20", got)
	}
	if first.calls != 0 {
		t.Errorf("old provider calls: got %d, want 0", first.calls)
	}
}
