package mqtt

import (
	"testing"
)

func TestOutboxEmptyDrain(t *testing.T) {
	ob := newOutbox(10)
	got := ob.drainAll()
	if got != nil {
		t.Errorf("expected nil from empty drain, got %d items", len(got))
	}
}

func TestOutboxPushAndDrain(t *testing.T) {
	ob := newOutbox(10)
	for i := 0; i < 5; i++ {
		ob.push(bufferedMsg{topic: "n", payload: []byte{byte(i)}})
	}

	got := ob.drainAll()
	if len(got) != 5 {
		t.Fatalf("expected 5 items, got %d", len(got))
	}
	for i := 0; i < 5; i++ {
		if got[i].payload[0] != byte(i) {
			t.Errorf("item %d: expected payload %d, got %d", i, i, got[i].payload[0])
		}
	}

	// Second drain should be empty
	if got2 := ob.drainAll(); got2 != nil {
		t.Errorf("expected nil from second drain, got %d items", len(got2))
	}
}

func TestOutboxOverflow(t *testing.T) {
	capacity := 5
	ob := newOutbox(capacity)

	// Push capacity+3 items (0..7), outbox should keep the most recent 5 (3..7)
	for i := 0; i < capacity+3; i++ {
		ob.push(bufferedMsg{topic: "n", payload: []byte{byte(i)}})
	}

	got := ob.drainAll()
	if len(got) != capacity {
		t.Fatalf("expected %d items, got %d", capacity, len(got))
	}
	for i := 0; i < capacity; i++ {
		want := byte(i + 3)
		if got[i].payload[0] != want {
			t.Errorf("item %d: expected payload %d, got %d", i, want, got[i].payload[0])
		}
	}
}

func TestOutboxCoalescesStateTopics(t *testing.T) {
	ob := newOutbox(10, "g/OUT/STATE")

	ob.push(bufferedMsg{topic: "g/OUT/STATE", payload: []byte("OPEN")})
	ob.push(bufferedMsg{topic: "g/OUT/NOTIFY", payload: []byte("g just CLOSED!")})
	ob.push(bufferedMsg{topic: "g/OUT/STATE", payload: []byte("CLOSED")})

	got := ob.drainAll()
	if len(got) != 2 {
		t.Fatalf("expected 2 items, got %d", len(got))
	}
	if got[0].topic != "g/OUT/STATE" || string(got[0].payload) != "CLOSED" {
		t.Errorf("state should hold latest payload in its original slot, got %s=%s", got[0].topic, got[0].payload)
	}
	if string(got[1].payload) != "g just CLOSED!" {
		t.Errorf("notify: got %s", got[1].payload)
	}
}

func TestOutboxCoalesceSurvivesOverflow(t *testing.T) {
	ob := newOutbox(3, "s")

	ob.push(bufferedMsg{topic: "s", payload: []byte("a")})
	ob.push(bufferedMsg{topic: "n", payload: []byte("1")})
	ob.push(bufferedMsg{topic: "n", payload: []byte("2")})
	ob.push(bufferedMsg{topic: "n", payload: []byte("3")}) // drops "s"
	ob.push(bufferedMsg{topic: "s", payload: []byte("b")}) // drops "1"
	ob.push(bufferedMsg{topic: "s", payload: []byte("c")}) // replaces "b"

	got := ob.drainAll()
	var flat []string
	for _, m := range got {
		flat = append(flat, m.topic+"="+string(m.payload))
	}
	want := []string{"n=2", "n=3", "s=c"}
	if len(flat) != len(want) {
		t.Fatalf("got %v, want %v", flat, want)
	}
	for i := range want {
		if flat[i] != want[i] {
			t.Errorf("item %d: got %s, want %s", i, flat[i], want[i])
		}
	}
}

func TestOutboxLen(t *testing.T) {
	ob := newOutbox(10)
	if ob.len() != 0 {
		t.Errorf("expected len 0, got %d", ob.len())
	}

	ob.push(bufferedMsg{topic: "t"})
	ob.push(bufferedMsg{topic: "t"})
	if ob.len() != 2 {
		t.Errorf("expected len 2, got %d", ob.len())
	}

	ob.drainAll()
	if ob.len() != 0 {
		t.Errorf("expected len 0 after drain, got %d", ob.len())
	}
}

func TestOutboxPreservesFields(t *testing.T) {
	ob := newOutbox(10)
	ob.push(bufferedMsg{
		topic:    "garage/OUT/STATUS",
		payload:  []byte("online"),
		retained: true,
	})

	got := ob.drainAll()
	if len(got) != 1 {
		t.Fatalf("expected 1 item, got %d", len(got))
	}
	if got[0].topic != "garage/OUT/STATUS" || string(got[0].payload) != "online" || !got[0].retained {
		t.Errorf("fields not preserved: %+v", got[0])
	}
}
