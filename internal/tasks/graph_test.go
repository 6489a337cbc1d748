package tasks

import (
	"reflect"
	"testing"
)

func node(id, parent string, st Status) *Task {
	t := &Task{TaskID: id, Status: st}
	if parent != "" {
		t.ParentID = &parent
	}
	return t
}

func TestForest_AncestorLocked(t *testing.T) {
	f := newForest([]*Task{
		node("r", "", StatusCompleted),
		node("c", "r", StatusPending),
		node("g", "c", StatusPending),
		node("orphan", "gone", StatusPending),
	})
	if !f.ancestorLocked("g") {
		t.Error("g should be ancestor-locked through r")
	}
	if f.ancestorLocked("r") {
		t.Error("r has no ancestors")
	}
	if f.ancestorLocked("orphan") {
		t.Error("dangling parent should end the walk")
	}
	if f.ancestorLocked("unknown") {
		t.Error("unknown id should not be locked")
	}
}

func TestForest_CycleTerminates(t *testing.T) {
	f := newForest([]*Task{
		node("a", "b", StatusPending),
		node("b", "a", StatusPending),
	})
	if f.ancestorLocked("a") {
		t.Error("unlocked cycle reported locked")
	}
	if got := f.descendants("a"); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("descendants(a) = %v", got)
	}
}

func TestForest_DescendantsBFS(t *testing.T) {
	f := newForest([]*Task{
		node("r", "", StatusPending),
		node("a", "r", StatusPending),
		node("b", "r", StatusPending),
		node("a1", "a", StatusPending),
		node("b1", "b", StatusPending),
	})
	if got := f.descendants("r"); !reflect.DeepEqual(got, []string{"a", "b", "a1", "b1"}) {
		t.Errorf("descendants(r) = %v", got)
	}
	if got := f.descendants("a1"); len(got) != 0 {
		t.Errorf("leaf descendants = %v", got)
	}
}

func TestParseStatus(t *testing.T) {
	if st, err := ParseStatus(" Completed "); err != nil || st != StatusCompleted {
		t.Errorf("ParseStatus = %s, %v", st, err)
	}
	if _, err := ParseStatus("done"); err == nil {
		t.Error("expected error")
	}
	if !StatusArchived.Locked() || StatusPending.Locked() {
		t.Error("Locked mismatch")
	}
	if !StatusInProgress.Unlocks() || StatusCompleted.Unlocks() {
		t.Error("Unlocks mismatch")
	}
}
