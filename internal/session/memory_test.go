package session

import (
	"context"
	"testing"

	"github.com/aptgraph/aptgraph/internal/pipeline"
)

func TestMemoryStoreGetCreatesFreshSession(t *testing.T) {
	m := NewMemoryStore()
	sess, err := m.Get(context.Background(), "s1")
	if err != nil {
		t.Fatal(err)
	}
	if sess.Cache == nil {
		t.Fatal("expected a fresh non-nil StageCache")
	}
	if sess.Last != nil {
		t.Error("expected no Last record for a fresh session")
	}
}

func TestMemoryStoreSaveRoundTrips(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	sess, _ := m.Get(ctx, "s1")
	sess.Last = &Record{
		Params: pipeline.Parameters{User: "u1"},
		Output: &pipeline.Output{Stdout: "hello"},
	}
	if err := m.Save(ctx, "s1", sess, 0); err != nil {
		t.Fatal(err)
	}

	reloaded, err := m.Get(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.Last == nil || reloaded.Last.Output.Stdout != "hello" {
		t.Errorf("reloaded session = %+v, want Last.Output.Stdout = hello", reloaded.Last)
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	sess, _ := m.Get(ctx, "s1")
	sess.Last = &Record{Output: &pipeline.Output{Stdout: "x"}}
	_ = m.Save(ctx, "s1", sess, 0)

	if err := m.Delete(ctx, "s1"); err != nil {
		t.Fatal(err)
	}
	fresh, _ := m.Get(ctx, "s1")
	if fresh.Last != nil {
		t.Error("expected a fresh session after delete")
	}
}
