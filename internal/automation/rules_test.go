package automation

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/sweeney/garage-controller/internal/logic"
)

var t0 = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

func TestIdleConfigClearsOpenSince(t *testing.T) {
	st, fx := Step(Config{}, State{OpenSince: 123}, logic.EventRemainOpen, t0)
	if st.OpenSince != 0 {
		t.Errorf("expected OpenSince cleared, got %d", st.OpenSince)
	}
	if len(fx.Messages) != 0 || fx.Close {
		t.Errorf("expected no effects, got %+v", fx)
	}
}

func TestTransitionNotifications(t *testing.T) {
	cfg := Config{Name: "Garage", Notify: NotifyOpen | NotifyClose | NotifyStop, Hour: 24}

	tests := []struct {
		ev            logic.DoorEvent
		want          string
		wantOpenSince int64
	}{
		{logic.EventJustOpened, "Garage just OPENED!", t0.Unix()},
		{logic.EventJustClosed, "Garage just CLOSED!", 0},
		{logic.EventJustStopped, "Garage just STOPPED!", 0},
	}

	for _, tt := range tests {
		t.Run(tt.ev.String(), func(t *testing.T) {
			st, fx := Step(cfg, State{OpenSince: 99}, tt.ev, t0)
			if diff := cmp.Diff([]string{tt.want}, fx.Messages); diff != "" {
				t.Errorf("messages (-want +got):\n%s", diff)
			}
			if st.OpenSince != tt.wantOpenSince {
				t.Errorf("OpenSince: got %d, want %d", st.OpenSince, tt.wantOpenSince)
			}
		})
	}
}

func TestNotifyMaskFilters(t *testing.T) {
	cfg := Config{Name: "Garage", Notify: NotifyClose, Hour: 24}
	_, fx := Step(cfg, State{}, logic.EventJustOpened, t0)
	if len(fx.Messages) != 0 {
		t.Errorf("open notification should be masked, got %v", fx.Messages)
	}
}

func TestPolicyAFiresOnce(t *testing.T) {
	cfg := Config{Name: "Garage", IntervalMinutes: 1, IntervalRule: RuleNotify, Hour: 24}
	e := NewEngine(cfg)

	e.Process(logic.EventJustOpened, t0)
	if e.State().OpenSince != t0.Unix() {
		t.Fatalf("OpenSince not recorded")
	}

	fired := 0
	for s := 1; s <= 60; s++ {
		fx := e.Process(logic.EventRemainOpen, t0.Add(time.Duration(s)*time.Second))
		if len(fx.Messages) > 0 {
			fired++
			if s != 60 {
				t.Errorf("fired at +%ds, want +60s", s)
			}
			if !strings.Contains(fx.Messages[0], "left open for more than 1 minutes") {
				t.Errorf("unexpected message %q", fx.Messages[0])
			}
			if !strings.HasSuffix(fx.Messages[0], "This is a reminder for you.") {
				t.Errorf("notify-only policy should remind, got %q", fx.Messages[0])
			}
			if e.State().OpenSince != 0 {
				t.Error("OpenSince should be cleared right after firing")
			}
		}
		if fx.Close {
			t.Error("notify-only policy must not close")
		}
	}
	if fired != 1 {
		t.Errorf("expected exactly one firing, got %d", fired)
	}

	// after firing, the cycle at T+61 re-seeds OpenSince, so no repeat at T+120
	e.Process(logic.EventRemainOpen, t0.Add(61*time.Second))
	fx := e.Process(logic.EventRemainOpen, t0.Add(120*time.Second))
	if len(fx.Messages) != 0 {
		t.Errorf("unexpected repeat at T+120: %v", fx.Messages)
	}
}

func TestPolicyACloses(t *testing.T) {
	cfg := Config{Name: "Garage", IntervalMinutes: 5, IntervalRule: RuleNotify | RuleClose, Hour: 24}
	st := State{OpenSince: t0.Unix()}

	st, fx := Step(cfg, st, logic.EventRemainOpen, t0.Add(5*time.Minute))
	if !fx.Close {
		t.Error("expected close effect")
	}
	if len(fx.Messages) != 1 || !strings.HasSuffix(fx.Messages[0], "It will be auto-closed shortly.") {
		t.Errorf("unexpected messages %v", fx.Messages)
	}
	if st.OpenSince != 0 {
		t.Error("OpenSince should be cleared")
	}
}

func TestRemainOpenSeedsOpenSinceAfterRestart(t *testing.T) {
	cfg := Config{Name: "Garage", IntervalMinutes: 1, IntervalRule: RuleNotify, Hour: 24}
	st, fx := Step(cfg, State{}, logic.EventRemainOpen, t0)
	if st.OpenSince != t0.Unix() {
		t.Errorf("expected OpenSince seeded to now, got %d", st.OpenSince)
	}
	if len(fx.Messages) != 0 {
		t.Error("seeding must not fire")
	}
}

func TestOtherEventsClearOpenSince(t *testing.T) {
	cfg := Config{Name: "Garage", Notify: NotifyOpen, Hour: 24}
	for _, ev := range []logic.DoorEvent{logic.EventRemainClosed, logic.EventNone, logic.EventStartClosing, logic.EventStillOpening} {
		st, _ := Step(cfg, State{OpenSince: 5}, ev, t0)
		if st.OpenSince != 0 {
			t.Errorf("%s: OpenSince not cleared", ev)
		}
	}
}

func TestPolicyBLatch(t *testing.T) {
	cfg := Config{Name: "Garage", Hour: 22, HourRule: RuleNotify | RuleClose}
	e := NewEngine(cfg)
	hour22 := time.Date(2026, 3, 10, 22, 0, 0, 0, time.UTC)

	e.Process(logic.EventRemainOpen, hour22.Add(-time.Hour))

	fires := 0
	for m := 0; m < 60; m++ {
		fx := e.Process(logic.EventRemainOpen, hour22.Add(time.Duration(m)*time.Minute))
		if fx.Close {
			fires++
		}
	}
	if fires != 1 {
		t.Fatalf("expected one firing during hour 22, got %d", fires)
	}
	if !e.State().HourLatched {
		t.Error("latch should be armed during the hour")
	}

	e.Process(logic.EventRemainOpen, hour22.Add(time.Hour))
	if e.State().HourLatched {
		t.Error("latch should disarm once the hour has passed")
	}

	fx := e.Process(logic.EventRemainOpen, hour22.Add(24*time.Hour))
	if !fx.Close {
		t.Error("policy B should fire again the next day")
	}
}

func TestPolicyBLatchWrapsAtMidnight(t *testing.T) {
	cfg := Config{Name: "Garage", Hour: 23, HourRule: RuleNotify}
	st := State{HourLatched: true}
	st, _ = Step(cfg, st, logic.EventRemainOpen, time.Date(2026, 3, 11, 0, 5, 0, 0, time.UTC))
	if st.HourLatched {
		t.Error("latch for hour 23 should disarm at hour 0")
	}
}

func TestOpenedDuringPolicyHourIsNotClosed(t *testing.T) {
	cfg := Config{Name: "Garage", Hour: 22, HourRule: RuleClose}
	e := NewEngine(cfg)
	at := time.Date(2026, 3, 10, 22, 15, 0, 0, time.UTC)

	e.Process(logic.EventJustOpened, at)
	if !e.State().HourLatched {
		t.Fatal("opening during the policy hour should arm the latch")
	}
	for m := 1; m < 45; m++ {
		if fx := e.Process(logic.EventRemainOpen, at.Add(time.Duration(m)*time.Minute)); fx.Close {
			t.Fatalf("door opened during hour 22 was closed at +%dm", m)
		}
	}
}
