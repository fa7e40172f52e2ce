package station

import (
	"strings"
	"testing"

	"golang.org/x/xerrors"
)

func TestTaskGroupAllSucceed(t *testing.T) {
	g := NewTaskGroup()
	for i := 0; i < 5; i++ {
		g.Go(func() error { return nil })
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestTaskGroupCollectsEverySiblingError(t *testing.T) {
	g := NewTaskGroup()
	g.Go(func() error { return xerrors.New("first") })
	g.Go(func() error { return nil })
	g.Go(func() error { return xerrors.New("second") })

	err := g.Wait()
	if err == nil {
		t.Fatal("Wait: want error, got nil")
	}
	if !strings.Contains(err.Error(), "first") || !strings.Contains(err.Error(), "second") {
		t.Fatalf("err = %v, want both sibling errors present", err)
	}
}
