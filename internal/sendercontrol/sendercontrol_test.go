package sendercontrol

import "testing"

func raw(tick float64, control string) RawEntry {
	return RawEntry{Tick: tick, Control: control}
}

func TestParseScheduleLegacyScalar(t *testing.T) {
	entries, err := ParseSchedule([]RawEntry{raw(0, "1.0"), raw(100, "0.0")}, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if !entries[0].Clauses[0].Group.All {
		t.Fatalf("bare scalar control should apply to all senders")
	}
	if entries[0].Clauses[0].Rate != 1.0 {
		t.Fatalf("expected rate 1.0, got %v", entries[0].Clauses[0].Rate)
	}
}

func TestParseScheduleGroupClauses(t *testing.T) {
	entries, err := ParseSchedule([]RawEntry{
		raw(0, "1=1.0:2-4=0"),
		raw(100, "*=0"),
	}, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries[0].Clauses) != 2 {
		t.Fatalf("expected 2 clauses, got %d", len(entries[0].Clauses))
	}
	if !entries[0].Clauses[1].Group.contains(3) {
		t.Fatalf("range clause 2-4 should contain index 3")
	}
	if entries[0].Clauses[1].Group.contains(1) {
		t.Fatalf("range clause 2-4 should not contain index 1")
	}
}

func TestParseScheduleRejectsDuplicateTicks(t *testing.T) {
	_, err := ParseSchedule([]RawEntry{raw(0, "1.0"), raw(0, "0.0")}, 2)
	if err == nil {
		t.Fatalf("expected an error for duplicate ticks")
	}
}

func TestParseScheduleRequiresFirstTickZero(t *testing.T) {
	_, err := ParseSchedule([]RawEntry{raw(5, "1.0"), raw(100, "0.0")}, 2)
	if err == nil {
		t.Fatalf("expected an error when the first tick is not 0")
	}
}

func TestParseScheduleRequiresTerminalZero(t *testing.T) {
	_, err := ParseSchedule([]RawEntry{raw(0, "1.0"), raw(100, "0.5")}, 2)
	if err == nil {
		t.Fatalf("expected an error when the schedule never reaches rate 0 for every sender")
	}
}

func TestParseScheduleRejectsDuplicateIndexInClauseSet(t *testing.T) {
	_, err := ParseSchedule([]RawEntry{raw(0, "1=0.5:1-2=0"), raw(100, "*=0")}, 2)
	if err == nil {
		t.Fatalf("expected an error: sender 1 appears in both clauses")
	}
}

func TestParseScheduleRejectsOutOfRangeIndex(t *testing.T) {
	_, err := ParseSchedule([]RawEntry{raw(0, "5=1.0"), raw(100, "*=0")}, 4)
	if err == nil {
		t.Fatalf("expected an error for an out-of-range sender index")
	}
}

func TestParseScheduleRejectsEmptySchedule(t *testing.T) {
	if _, err := ParseSchedule(nil, 4); err == nil {
		t.Fatalf("expected an error for an empty schedule")
	}
}
