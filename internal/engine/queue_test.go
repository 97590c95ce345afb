package engine

import "testing"

// TestBuildQueue_FreshSpray mirrors spec.md S1: no prior log, password-
// major order across three users and two passwords.
func TestBuildQueue_FreshSpray(t *testing.T) {
	users := []string{"u1", "u2", "u3"}
	passwords := []string{"P1", "P2"}

	queue := BuildQueue(users, passwords, "", nil, nil, false)

	want := []Pair{
		{Username: "u1", Password: "P1"},
		{Username: "u2", Password: "P1"},
		{Username: "u3", Password: "P1"},
		{Username: "u1", Password: "P2"},
		{Username: "u2", Password: "P2"},
		{Username: "u3", Password: "P2"},
	}
	if len(queue) != len(want) {
		t.Fatalf("expected %d pairs, got %d: %v", len(want), len(queue), queue)
	}
	for i, p := range want {
		if queue[i] != p {
			t.Errorf("position %d: expected %v, got %v", i, p, queue[i])
		}
	}
}

// TestBuildQueue_Resume mirrors spec.md S2: completed subset is
// excluded, remaining order preserved.
func TestBuildQueue_Resume(t *testing.T) {
	users := []string{"u1", "u2", "u3"}
	passwords := []string{"P1", "P2", "P3"}
	completed := map[Pair]struct{}{
		{Username: "u1", Password: "P1"}: {},
		{Username: "u2", Password: "P1"}: {},
		{Username: "u1", Password: "P2"}: {},
	}

	queue := BuildQueue(users, passwords, "", completed, nil, false)

	want := []Pair{
		{Username: "u3", Password: "P1"},
		{Username: "u2", Password: "P2"},
		{Username: "u3", Password: "P2"},
		{Username: "u1", Password: "P3"},
		{Username: "u2", Password: "P3"},
		{Username: "u3", Password: "P3"},
	}
	if len(queue) != len(want) {
		t.Fatalf("expected %d pairs, got %d: %v", len(want), len(queue), queue)
	}
	for i, p := range want {
		if queue[i] != p {
			t.Errorf("position %d: expected %v, got %v", i, p, queue[i])
		}
	}
}

func TestBuildQueue_DomainPrefix(t *testing.T) {
	queue := BuildQueue([]string{"alice", "bob"}, []string{"P1"}, "TESTDOMAIN", nil, nil, false)

	want := []Pair{
		{Username: `TESTDOMAIN\alice`, Password: "P1"},
		{Username: `TESTDOMAIN\bob`, Password: "P1"},
	}
	for i, p := range want {
		if queue[i] != p {
			t.Errorf("position %d: expected %v, got %v", i, p, queue[i])
		}
	}
}

func TestBuildQueue_SkipGuessed(t *testing.T) {
	guessed := map[string]struct{}{"u2": {}}
	queue := BuildQueue([]string{"u1", "u2"}, []string{"P1"}, "", nil, guessed, true)

	if len(queue) != 1 || queue[0].Username != "u1" {
		t.Errorf("expected only u1 to remain, got %v", queue)
	}
}

func TestBuildQueue_AllCompleted(t *testing.T) {
	completed := map[Pair]struct{}{{Username: "u1", Password: "P1"}: {}}
	queue := BuildQueue([]string{"u1"}, []string{"P1"}, "", completed, nil, false)
	if len(queue) != 0 {
		t.Errorf("expected empty queue, got %v", queue)
	}
}
