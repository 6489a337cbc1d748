package tasks

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"sync"
	"testing"

	"github.com/HendryAvila/taskpad/internal/storage"
)

const proj = "p1"

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "taskpad.db"))
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewEngine(db.SQL(), nil)
}

func ptr(s string) *string { return &s }

func mustAdd(t *testing.T, e *Engine, items ...NewTask) {
	t.Helper()
	res, err := e.AddTasks(context.Background(), proj, items)
	if err != nil {
		t.Fatalf("AddTasks: %v", err)
	}
	if len(res.Added) != len(items) {
		t.Fatalf("AddTasks added %v, want %d items (exists=%v invalid=%v)", res.Added, len(items), res.Exists, res.Invalid)
	}
}

func mustSet(t *testing.T, e *Engine, u StateUpdate) *StateResult {
	t.Helper()
	res, err := e.SetTasksState(context.Background(), proj, u)
	if err != nil {
		t.Fatalf("SetTasksState: %v", err)
	}
	return res
}

func statusOf(t *testing.T, e *Engine, id string) Status {
	t.Helper()
	task, err := e.GetTask(context.Background(), proj, id)
	if err != nil {
		t.Fatalf("GetTask(%s): %v", id, err)
	}
	return task.Status
}

// buildTree creates root -> a -> a1, root -> b, plus an unrelated task.
func buildTree(t *testing.T, e *Engine) {
	t.Helper()
	mustAdd(t, e,
		NewTask{TaskID: "root", TaskInfo: "Ship release"},
		NewTask{TaskID: "a", TaskInfo: "Write docs", ParentID: ptr("root")},
		NewTask{TaskID: "a1", TaskInfo: "Docs: install guide", ParentID: ptr("a")},
		NewTask{TaskID: "b", TaskInfo: "Tag build", ParentID: ptr("root")},
		NewTask{TaskID: "other", TaskInfo: "Unrelated chore"},
	)
}

// --- AddTasks ---

func TestAddTasks_Idempotent(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	first, err := e.AddTasks(ctx, proj, []NewTask{{TaskID: "t1", TaskInfo: "original"}})
	if err != nil {
		t.Fatalf("AddTasks: %v", err)
	}
	second, err := e.AddTasks(ctx, proj, []NewTask{{TaskID: "t1", TaskInfo: "overwrite attempt"}})
	if err != nil {
		t.Fatalf("AddTasks: %v", err)
	}

	if !reflect.DeepEqual(first.Added, []string{"t1"}) {
		t.Errorf("first.Added = %v", first.Added)
	}
	if len(second.Added) != 0 || !reflect.DeepEqual(second.Exists, []string{"t1"}) {
		t.Errorf("second = %+v, want t1 in exists only", second)
	}

	list, err := e.ListTasks(ctx, proj, ListFilter{})
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(list) != 1 || list[0].TaskInfo != "original" {
		t.Errorf("task overwritten or duplicated: %+v", list)
	}
}

func TestAddTasks_DuplicateWithinCall(t *testing.T) {
	e := newTestEngine(t)
	res, err := e.AddTasks(context.Background(), proj, []NewTask{
		{TaskID: "t1", TaskInfo: "one"},
		{TaskID: "t1", TaskInfo: "again"},
	})
	if err != nil {
		t.Fatalf("AddTasks: %v", err)
	}
	if !reflect.DeepEqual(res.Added, []string{"t1"}) || !reflect.DeepEqual(res.Exists, []string{"t1"}) {
		t.Errorf("res = %+v", res)
	}
}

func TestAddTasks_Invalid(t *testing.T) {
	e := newTestEngine(t)
	res, err := e.AddTasks(context.Background(), proj, []NewTask{
		{TaskID: "", TaskInfo: "no id"},
		{TaskID: "t2", TaskInfo: "  "},
		{TaskID: "t3", TaskInfo: "bad status", Status: "done"},
		{TaskID: "t4", TaskInfo: "fine", Status: "In_Progress"},
	})
	if err != nil {
		t.Fatalf("AddTasks: %v", err)
	}
	if len(res.Invalid) != 3 {
		t.Fatalf("Invalid = %+v, want 3", res.Invalid)
	}
	if !reflect.DeepEqual(res.Added, []string{"t4"}) {
		t.Errorf("Added = %v", res.Added)
	}
	if got := statusOf(t, e, "t4"); got != StatusInProgress {
		t.Errorf("t4 status = %s", got)
	}
}

func TestAddTasks_EmptyProject(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.AddTasks(context.Background(), " ", nil); !errors.Is(err, ErrEmptyProject) {
		t.Fatalf("expected ErrEmptyProject, got %v", err)
	}
}

func TestAddTasks_ProjectsAreIsolated(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	if _, err := e.AddTasks(ctx, "p1", []NewTask{{TaskID: "t1", TaskInfo: "x"}}); err != nil {
		t.Fatal(err)
	}
	res, err := e.AddTasks(ctx, "p2", []NewTask{{TaskID: "t1", TaskInfo: "y"}})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(res.Added, []string{"t1"}) {
		t.Errorf("same id in another project should be added, got %+v", res)
	}
}

// --- Locking ---

func TestSetTasksState_LockedRejectsEdits(t *testing.T) {
	for _, locked := range []string{"completed", "archived"} {
		t.Run(locked, func(t *testing.T) {
			e := newTestEngine(t)
			mustAdd(t, e, NewTask{TaskID: "t", TaskInfo: "frozen", Status: locked})

			res := mustSet(t, e, StateUpdate{MatchIDs: []string{"t"}, TaskInfo: ptr("edited")})
			if !reflect.DeepEqual(res.Forbidden, []string{"t"}) {
				t.Errorf("field edit on locked task: %+v", res)
			}

			other := "archived"
			if locked == "archived" {
				other = "completed"
			}
			res = mustSet(t, e, StateUpdate{MatchIDs: []string{"t"}, State: ptr(other)})
			if !reflect.DeepEqual(res.Forbidden, []string{"t"}) {
				t.Errorf("locked -> %s should be forbidden: %+v", other, res)
			}

			res = mustSet(t, e, StateUpdate{MatchIDs: []string{"t"}, State: ptr(locked)})
			if !reflect.DeepEqual(res.Forbidden, []string{"t"}) {
				t.Errorf("locked -> same locked state should be forbidden: %+v", res)
			}

			res = mustSet(t, e, StateUpdate{MatchIDs: []string{"t"}, State: ptr("in_progress"), TaskInfo: ptr("x")})
			if !reflect.DeepEqual(res.Forbidden, []string{"t"}) {
				t.Errorf("unlock combined with field edit should be forbidden: %+v", res)
			}

			res = mustSet(t, e, StateUpdate{MatchIDs: []string{"t"}, State: ptr("in_progress")})
			if !reflect.DeepEqual(res.ChangedIDs, []string{"t"}) {
				t.Errorf("unlock should succeed: %+v", res)
			}
			if got := statusOf(t, e, "t"); got != StatusInProgress {
				t.Errorf("status = %s, want in_progress", got)
			}

			res = mustSet(t, e, StateUpdate{MatchIDs: []string{"t"}, TaskInfo: ptr("edited")})
			if !reflect.DeepEqual(res.ChangedIDs, []string{"t"}) {
				t.Errorf("edit after unlock should succeed: %+v", res)
			}
		})
	}
}

func TestSetTasksState_AncestorLock(t *testing.T) {
	e := newTestEngine(t)
	buildTree(t, e)
	mustSet(t, e, StateUpdate{MatchIDs: []string{"a"}, State: ptr("completed")})

	// a1 sits under completed a: every mutation fails, unlocks included.
	for name, u := range map[string]StateUpdate{
		"field":  {MatchIDs: []string{"a1"}, ExtraNote: ptr("note")},
		"unlock": {MatchIDs: []string{"a1"}, State: ptr("pending")},
		"lock":   {MatchIDs: []string{"a1"}, State: ptr("archived")},
	} {
		res := mustSet(t, e, u)
		if !reflect.DeepEqual(res.Forbidden, []string{"a1"}) || len(res.ChangedIDs) != 0 {
			t.Errorf("%s on ancestor-locked task: %+v", name, res)
		}
	}

	// Unlocking the ancestor first frees the subtree.
	mustSet(t, e, StateUpdate{MatchIDs: []string{"a"}, State: ptr("pending")})
	res := mustSet(t, e, StateUpdate{MatchIDs: []string{"a1"}, ExtraNote: ptr("note")})
	if !reflect.DeepEqual(res.ChangedIDs, []string{"a1"}) {
		t.Errorf("after ancestor unlock: %+v", res)
	}
}

func TestSetTasksState_DeepAncestorLock(t *testing.T) {
	e := newTestEngine(t)
	buildTree(t, e)
	mustSet(t, e, StateUpdate{MatchIDs: []string{"root"}, State: ptr("archived")})

	res := mustSet(t, e, StateUpdate{MatchIDs: []string{"a1"}, State: ptr("pending")})
	if !reflect.DeepEqual(res.Forbidden, []string{"a1"}) {
		t.Errorf("grandchild of archived root: %+v", res)
	}
}

// --- Cascade ---

func TestSetTasksState_Cascade(t *testing.T) {
	e := newTestEngine(t)
	buildTree(t, e)
	mustAdd(t, e, NewTask{TaskID: "sibling", TaskInfo: "Sibling of a", ParentID: ptr("root")})

	res := mustSet(t, e, StateUpdate{MatchIDs: []string{"a"}, State: ptr("in_progress")})
	if !reflect.DeepEqual(res.ChangedIDs, []string{"a"}) {
		t.Errorf("ChangedIDs = %v", res.ChangedIDs)
	}
	if !reflect.DeepEqual(res.Cascaded, []string{"a1"}) {
		t.Errorf("Cascaded = %v", res.Cascaded)
	}

	want := map[string]Status{
		"root":    StatusPending,
		"a":       StatusInProgress,
		"a1":      StatusInProgress,
		"b":       StatusPending,
		"sibling": StatusPending,
		"other":   StatusPending,
	}
	for id, st := range want {
		if got := statusOf(t, e, id); got != st {
			t.Errorf("%s status = %s, want %s", id, got, st)
		}
	}
}

func TestSetTasksState_CascadeArbitraryDepth(t *testing.T) {
	e := newTestEngine(t)
	items := []NewTask{{TaskID: "n0", TaskInfo: "level 0"}}
	for i := 1; i < 30; i++ {
		items = append(items, NewTask{
			TaskID:   "n" + strconv.Itoa(i),
			TaskInfo: "level " + strconv.Itoa(i),
			ParentID: ptr("n" + strconv.Itoa(i-1)),
		})
	}
	mustAdd(t, e, items...)

	res := mustSet(t, e, StateUpdate{MatchIDs: []string{"n0"}, State: ptr("completed")})
	if len(res.Cascaded) != 29 {
		t.Fatalf("Cascaded = %d, want 29", len(res.Cascaded))
	}
	if got := statusOf(t, e, "n29"); got != StatusCompleted {
		t.Errorf("deepest status = %s", got)
	}
}

func TestSetTasksState_CascadeIgnoresDescendantLocks(t *testing.T) {
	e := newTestEngine(t)
	buildTree(t, e)
	mustSet(t, e, StateUpdate{MatchIDs: []string{"a1"}, State: ptr("completed")})

	mustSet(t, e, StateUpdate{MatchIDs: []string{"root"}, State: ptr("archived")})
	if got := statusOf(t, e, "a1"); got != StatusArchived {
		t.Errorf("a1 = %s, want archived", got)
	}

	// Unlocking root reopens the whole subtree.
	mustSet(t, e, StateUpdate{MatchIDs: []string{"root"}, State: ptr("pending")})
	for _, id := range []string{"root", "a", "a1", "b"} {
		if got := statusOf(t, e, id); got != StatusPending {
			t.Errorf("%s = %s, want pending", id, got)
		}
	}
}

func TestSetTasksState_CascadeWhenStatusUnchanged(t *testing.T) {
	e := newTestEngine(t)
	mustAdd(t, e,
		NewTask{TaskID: "p", TaskInfo: "parent"},
		NewTask{TaskID: "c", TaskInfo: "child", ParentID: ptr("p")},
	)
	mustSet(t, e, StateUpdate{MatchIDs: []string{"c"}, State: ptr("in_progress")})

	res := mustSet(t, e, StateUpdate{MatchIDs: []string{"p"}, State: ptr("pending")})
	if !reflect.DeepEqual(res.ChangedIDs, []string{"p"}) {
		t.Errorf("ChangedIDs = %v", res.ChangedIDs)
	}
	if !reflect.DeepEqual(res.Cascaded, []string{"c"}) {
		t.Errorf("Cascaded = %v, want [c]", res.Cascaded)
	}
	if got := statusOf(t, e, "c"); got != StatusPending {
		t.Errorf("c = %s, want pending", got)
	}
}

func TestSetTasksState_CycleSafety(t *testing.T) {
	e := newTestEngine(t)
	mustAdd(t, e,
		NewTask{TaskID: "x", TaskInfo: "x", ParentID: ptr("z")},
		NewTask{TaskID: "y", TaskInfo: "y", ParentID: ptr("x")},
		NewTask{TaskID: "z", TaskInfo: "z", ParentID: ptr("y")},
	)

	res := mustSet(t, e, StateUpdate{MatchIDs: []string{"x"}, State: ptr("in_progress")})
	if !reflect.DeepEqual(res.ChangedIDs, []string{"x"}) {
		t.Fatalf("ChangedIDs = %v", res.ChangedIDs)
	}
	got := append([]string(nil), res.Cascaded...)
	sort.Strings(got)
	if !reflect.DeepEqual(got, []string{"y", "z"}) {
		t.Errorf("Cascaded = %v, want y and z once each", res.Cascaded)
	}

	// All three are now in_progress; a lock check on any of them terminates.
	res = mustSet(t, e, StateUpdate{MatchIDs: []string{"y"}, ExtraNote: ptr("n")})
	if !reflect.DeepEqual(res.ChangedIDs, []string{"y"}) {
		t.Errorf("edit inside unlocked cycle: %+v", res)
	}

	// Locking one member of the cycle locks the rest through ancestry.
	mustSet(t, e, StateUpdate{MatchIDs: []string{"x"}, State: ptr("completed")})
	res = mustSet(t, e, StateUpdate{MatchIDs: []string{"x"}, State: ptr("pending")})
	if !reflect.DeepEqual(res.Forbidden, []string{"x"}) {
		t.Errorf("x has locked ancestors through the cycle: %+v", res)
	}
}

func TestSetTasksState_SelfParent(t *testing.T) {
	e := newTestEngine(t)
	mustAdd(t, e, NewTask{TaskID: "s", TaskInfo: "self", ParentID: ptr("s")})
	res := mustSet(t, e, StateUpdate{MatchIDs: []string{"s"}, State: ptr("completed")})
	if !reflect.DeepEqual(res.ChangedIDs, []string{"s"}) || len(res.Cascaded) != 0 {
		t.Errorf("self-parent: %+v", res)
	}
}

// --- Resolution ---

func TestSetTasksState_BulkPartialSuccess(t *testing.T) {
	e := newTestEngine(t)
	mustAdd(t, e,
		NewTask{TaskID: "locked", TaskInfo: "done already", Status: "completed"},
		NewTask{TaskID: "ok", TaskInfo: "open work"},
	)

	res := mustSet(t, e, StateUpdate{
		MatchIDs: []string{"locked", "missing", "ok"},
		State:    ptr("archived"),
	})
	if len(res.ChangedIDs) != 1 || len(res.Forbidden) != 1 || len(res.NotMatched) != 1 {
		t.Fatalf("res = %+v, want 1/1/1", res)
	}
	if res.ChangedIDs[0] != "ok" || res.Forbidden[0] != "locked" || res.NotMatched[0] != "missing" {
		t.Errorf("res = %+v", res)
	}
}

func TestSetTasksState_MatchText(t *testing.T) {
	e := newTestEngine(t)
	buildTree(t, e)

	res := mustSet(t, e, StateUpdate{
		MatchText: []string{"DOCS", "nothing like this"},
		ExtraNote: ptr("reviewed"),
	})
	if !reflect.DeepEqual(res.ChangedIDs, []string{"a", "a1"}) {
		t.Errorf("ChangedIDs = %v, want [a a1] in creation order", res.ChangedIDs)
	}
	if !reflect.DeepEqual(res.NotMatched, []string{"nothing like this"}) {
		t.Errorf("NotMatched = %v", res.NotMatched)
	}
}

func TestSetTasksState_DedupAcrossIDsAndText(t *testing.T) {
	e := newTestEngine(t)
	buildTree(t, e)

	res := mustSet(t, e, StateUpdate{
		MatchIDs:  []string{"b", "b"},
		MatchText: []string{"tag"},
		ExtraNote: ptr("once"),
	})
	if !reflect.DeepEqual(res.ChangedIDs, []string{"b"}) {
		t.Errorf("ChangedIDs = %v, want b processed once", res.ChangedIDs)
	}
}

func TestSetTasksState_ResolutionOrderMatters(t *testing.T) {
	e := newTestEngine(t)
	buildTree(t, e)
	mustSet(t, e, StateUpdate{MatchIDs: []string{"a"}, State: ptr("completed")})

	// a is unlocked first, so a1 is no longer ancestor-locked when reached.
	res := mustSet(t, e, StateUpdate{MatchIDs: []string{"a", "a1"}, State: ptr("in_progress")})
	if !reflect.DeepEqual(res.ChangedIDs, []string{"a", "a1"}) || len(res.Forbidden) != 0 {
		t.Errorf("res = %+v", res)
	}
}

func TestSetTasksState_Reparent(t *testing.T) {
	e := newTestEngine(t)
	buildTree(t, e)

	mustSet(t, e, StateUpdate{MatchIDs: []string{"other"}, ParentID: ptr("b")})
	mustSet(t, e, StateUpdate{MatchIDs: []string{"b"}, State: ptr("completed")})
	if got := statusOf(t, e, "other"); got != StatusCompleted {
		t.Errorf("reparented task did not follow cascade: %s", got)
	}

	mustSet(t, e, StateUpdate{MatchIDs: []string{"b"}, State: ptr("pending")})
	mustSet(t, e, StateUpdate{MatchIDs: []string{"other"}, ParentID: ptr("")})
	task, err := e.GetTask(context.Background(), proj, "other")
	if err != nil {
		t.Fatal(err)
	}
	if task.ParentID != nil {
		t.Errorf("ParentID = %v, want cleared", *task.ParentID)
	}
}

func TestSetTasksState_Validation(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.SetTasksState(ctx, proj, StateUpdate{State: ptr("pending")}); !errors.Is(err, ErrNoMatchers) {
		t.Errorf("no matchers: %v", err)
	}
	if _, err := e.SetTasksState(ctx, proj, StateUpdate{MatchIDs: []string{"x"}}); !errors.Is(err, ErrNothingToUpdate) {
		t.Errorf("nothing to update: %v", err)
	}
	if _, err := e.SetTasksState(ctx, proj, StateUpdate{MatchIDs: []string{"x"}, State: ptr("done")}); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("bad state: %v", err)
	}
}

func TestSetTasksState_StampsUpdatedAt(t *testing.T) {
	e := newTestEngine(t)
	e.now = func() string { return "2025-01-01T00:00:00Z" }
	mustAdd(t, e, NewTask{TaskID: "t", TaskInfo: "x"}, NewTask{TaskID: "c", TaskInfo: "y", ParentID: ptr("t")})

	e.now = func() string { return "2025-06-01T00:00:00Z" }
	mustSet(t, e, StateUpdate{MatchIDs: []string{"t"}, State: ptr("completed")})

	for _, id := range []string{"t", "c"} {
		task, err := e.GetTask(context.Background(), proj, id)
		if err != nil {
			t.Fatal(err)
		}
		if task.UpdatedAt != "2025-06-01T00:00:00Z" || task.CreatedAt != "2025-01-01T00:00:00Z" {
			t.Errorf("%s timestamps = %s / %s", id, task.CreatedAt, task.UpdatedAt)
		}
	}
}

func TestSetTasksState_ConcurrentCallsSerialize(t *testing.T) {
	e := newTestEngine(t)
	mustAdd(t, e, NewTask{TaskID: "t", TaskInfo: "contended"})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.SetTasksState(context.Background(), proj, StateUpdate{
				MatchIDs: []string{"t"}, State: ptr("completed"),
			}); err != nil {
				t.Errorf("SetTasksState: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := statusOf(t, e, "t"); got != StatusCompleted {
		t.Errorf("status = %s", got)
	}
}

// --- List / Get / Delete ---

func TestListTasks_Filters(t *testing.T) {
	e := newTestEngine(t)
	buildTree(t, e)
	mustSet(t, e, StateUpdate{MatchIDs: []string{"b"}, State: ptr("completed")})
	ctx := context.Background()

	sub, err := e.ListTasks(ctx, proj, ListFilter{RootID: "a"})
	if err != nil {
		t.Fatal(err)
	}
	if ids := taskIDs(sub); !reflect.DeepEqual(ids, []string{"a", "a1"}) {
		t.Errorf("subtree = %v", ids)
	}

	done, err := e.ListTasks(ctx, proj, ListFilter{Status: "completed"})
	if err != nil {
		t.Fatal(err)
	}
	if ids := taskIDs(done); !reflect.DeepEqual(ids, []string{"b"}) {
		t.Errorf("completed = %v", ids)
	}

	if _, err := e.ListTasks(ctx, proj, ListFilter{RootID: "nope"}); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("missing root: %v", err)
	}
	if _, err := e.ListTasks(ctx, proj, ListFilter{Status: "bogus"}); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("bad status filter: %v", err)
	}
}

func TestListTasks_EmptyProject(t *testing.T) {
	e := newTestEngine(t)
	list, err := e.ListTasks(context.Background(), "empty", ListFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if list == nil || len(list) != 0 {
		t.Errorf("list = %v, want empty non-nil", list)
	}
}

func TestGetTask_NotFound(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.GetTask(context.Background(), proj, "ghost"); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestDeleteAllTasks(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	buildTree(t, e)
	if _, err := e.AddTasks(ctx, "keep", []NewTask{{TaskID: "k", TaskInfo: "kept"}}); err != nil {
		t.Fatal(err)
	}

	n, err := e.DeleteAllTasks(ctx, proj)
	if err != nil {
		t.Fatalf("DeleteAllTasks: %v", err)
	}
	if n != 5 {
		t.Errorf("deleted = %d, want 5", n)
	}
	list, _ := e.ListTasks(ctx, proj, ListFilter{})
	if len(list) != 0 {
		t.Errorf("tasks remain: %v", taskIDs(list))
	}
	kept, _ := e.ListTasks(ctx, "keep", ListFilter{})
	if len(kept) != 1 {
		t.Errorf("other project touched: %v", taskIDs(kept))
	}

	// Ids are free again after a wipe.
	res, err := e.AddTasks(ctx, proj, []NewTask{{TaskID: "root", TaskInfo: "fresh"}})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(res.Added, []string{"root"}) {
		t.Errorf("re-add after wipe: %+v", res)
	}
}

func taskIDs(list []*Task) []string {
	out := make([]string, 0, len(list))
	for _, t := range list {
		out = append(out, t.TaskID)
	}
	return out
}
