package tasks

import (
	"fmt"
	"testing"
)

func TestTaskLifecycle(t *testing.T) {
	t.Parallel()
	tr := NewTracker()

	task := tr.Create("chat", map[string]any{"session_id": "s1"})
	if task.ID == "" || task.Status != StatusPending || task.Progress != 0 {
		t.Fatalf("created task = %+v", task)
	}

	if !tr.Start(task.ID, "working") {
		t.Fatal("Start returned false")
	}
	if !tr.UpdateProgress(task.ID, 50, "halfway") {
		t.Fatal("UpdateProgress returned false")
	}

	got := tr.Get(task.ID)
	if got.Status != StatusProcessing || got.Progress != 50 || got.Message != "halfway" {
		t.Errorf("mid-flight task = %+v", got)
	}
	if got.StartedAt == "" {
		t.Error("StartedAt not set")
	}

	if !tr.Complete(task.ID, "done") {
		t.Fatal("Complete returned false")
	}
	got = tr.Get(task.ID)
	if got.Status != StatusCompleted || got.Progress != 100 || got.CompletedAt == "" {
		t.Errorf("completed task = %+v", got)
	}
}

func TestFailKeepsProgress(t *testing.T) {
	t.Parallel()
	tr := NewTracker()

	task := tr.Create("chat", nil)
	tr.Start(task.ID, "")
	tr.UpdateProgress(task.ID, 30, "")
	tr.Fail(task.ID, "upstream error")

	got := tr.Get(task.ID)
	if got.Status != StatusFailed {
		t.Errorf("status = %s, want failed", got.Status)
	}
	if got.Progress != 30 {
		t.Errorf("progress = %d, want 30", got.Progress)
	}
	if got.Message != "upstream error" {
		t.Errorf("message = %q", got.Message)
	}
}

func TestProgressClamped(t *testing.T) {
	t.Parallel()
	tr := NewTracker()

	task := tr.Create("x", nil)
	tr.UpdateProgress(task.ID, 150, "")
	if got := tr.Get(task.ID); got.Progress != 100 {
		t.Errorf("progress = %d, want 100", got.Progress)
	}
	tr.UpdateProgress(task.ID, -10, "")
	if got := tr.Get(task.ID); got.Progress != 0 {
		t.Errorf("progress = %d, want 0", got.Progress)
	}
}

func TestUnknownTask(t *testing.T) {
	t.Parallel()
	tr := NewTracker()

	if tr.Get("nope") != nil {
		t.Error("Get(unknown) != nil")
	}
	if tr.Start("nope", "") || tr.Complete("nope", "") || tr.Fail("nope", "") {
		t.Error("mutations on unknown task reported success")
	}
}

func TestEvictionAtCapacity(t *testing.T) {
	t.Parallel()
	tr := NewTracker()

	first := tr.Create("task-0", nil)
	for i := 1; i <= maxTasks; i++ {
		tr.Create(fmt.Sprintf("task-%d", i), nil)
	}

	if got := tr.Statistics().Total; got != maxTasks {
		t.Errorf("tracker holds %d tasks, want %d", got, maxTasks)
	}
	if tr.Get(first.ID) != nil {
		t.Error("oldest task survived eviction")
	}
}

func TestListFiltersAndLimits(t *testing.T) {
	t.Parallel()
	tr := NewTracker()

	a := tr.Create("a", nil)
	tr.Create("b", nil)
	tr.Complete(a.ID, "")

	completed := tr.List(10, StatusCompleted)
	if len(completed) != 1 || completed[0].ID != a.ID {
		t.Errorf("completed list = %+v", completed)
	}

	all := tr.List(1, "")
	if len(all) != 1 {
		t.Errorf("limited list has %d entries, want 1", len(all))
	}
}

func TestStatisticsAndClear(t *testing.T) {
	t.Parallel()
	tr := NewTracker()

	a := tr.Create("a", nil)
	b := tr.Create("b", nil)
	tr.Create("c", nil)
	tr.Start(b.ID, "")
	tr.Complete(a.ID, "")

	stats := tr.Statistics()
	if stats.Total != 3 || stats.Pending != 1 || stats.Processing != 1 || stats.Completed != 1 {
		t.Errorf("stats = %+v", stats)
	}

	if removed := tr.ClearCompleted(); removed != 1 {
		t.Errorf("ClearCompleted removed %d, want 1", removed)
	}
	if removed := tr.ClearAll(); removed != 2 {
		t.Errorf("ClearAll removed %d, want 2", removed)
	}
}
