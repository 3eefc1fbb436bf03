package credential

import (
	"context"
	"errors"
	"testing"

	"omnigen/internal/models"
)

type fakeSelector struct {
	selected  string
	hasErr    error
	openErr   error
	selectOn  string // key chosen when the flow opens
	hasCalls  int
	openCalls int
}

func (f *fakeSelector) HasSelectedKey(context.Context) (bool, error) {
	f.hasCalls++
	if f.hasErr != nil {
		return false, f.hasErr
	}
	return f.selected != "", nil
}

func (f *fakeSelector) OpenSelectKey(context.Context) error {
	f.openCalls++
	if f.openErr != nil {
		return f.openErr
	}
	f.selected = f.selectOn
	return nil
}

func (f *fakeSelector) SelectedKey(context.Context) (string, error) {
	return f.selected, nil
}

func TestGateWithoutSelectorUsesDefaultKey(t *testing.T) {
	key, err := NewGate("default-key").Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if key != "default-key" {
		t.Fatalf("want default-key, got %q", key)
	}
}

func TestGateMissingCredential(t *testing.T) {
	_, err := NewGate("").Acquire(context.Background())
	if !errors.Is(err, models.ErrMissingCredential) {
		t.Fatalf("want ErrMissingCredential, got %v", err)
	}
}

func TestGateSelectedKeyWins(t *testing.T) {
	sel := &fakeSelector{selected: "picked"}
	key, err := NewGate("default-key", WithSelector(sel)).Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if key != "picked" {
		t.Fatalf("want picked, got %q", key)
	}
	if sel.openCalls != 0 {
		t.Fatalf("selection flow opened although a key was selected")
	}
}

func TestGateOpensFlowAndProceedsOptimistically(t *testing.T) {
	sel := &fakeSelector{}
	key, err := NewGate("default-key", WithSelector(sel)).Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if sel.openCalls != 1 {
		t.Fatalf("want 1 open call, got %d", sel.openCalls)
	}
	if sel.hasCalls != 1 {
		t.Fatalf("optimistic gate should not re-check, got %d checks", sel.hasCalls)
	}
	if key != "default-key" {
		t.Fatalf("want fallback default-key, got %q", key)
	}
}

func TestGateConfirmationRejectsUnfinishedSelection(t *testing.T) {
	sel := &fakeSelector{}
	_, err := NewGate("default-key", WithSelector(sel), WithConfirmation(true)).Acquire(context.Background())
	if !errors.Is(err, models.ErrKeySelection) {
		t.Fatalf("want ErrKeySelection, got %v", err)
	}
	if sel.hasCalls != 2 {
		t.Fatalf("want 2 checks, got %d", sel.hasCalls)
	}
}

func TestGateConfirmationAcceptsFinishedSelection(t *testing.T) {
	sel := &fakeSelector{selectOn: "fresh"}
	key, err := NewGate("", WithSelector(sel), WithConfirmation(true)).Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if key != "fresh" {
		t.Fatalf("want fresh, got %q", key)
	}
}

func TestGateSelectorErrors(t *testing.T) {
	cases := map[string]*fakeSelector{
		"has":  {hasErr: errors.New("boom")},
		"open": {openErr: errors.New("closed")},
	}
	for name, sel := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewGate("default-key", WithSelector(sel)).Acquire(context.Background())
			if !errors.Is(err, models.ErrKeySelection) {
				t.Fatalf("want ErrKeySelection, got %v", err)
			}
		})
	}
}
