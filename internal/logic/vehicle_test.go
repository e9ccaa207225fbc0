package logic

import "testing"

func TestEstimateVehicle(t *testing.T) {
	base := SensorConfig{DoorThreshold: 50, VehicleThreshold: 150}

	withMount := func(m Mount) SensorConfig { c := base; c.Mount = m; return c }
	external := base
	external.External = true
	secondary := base
	secondary.Switch = SwitchNormallyOpen
	secondary.Logic = SecondaryOnly
	disabled := base
	disabled.VehicleThreshold = 0

	tests := []struct {
		name     string
		cfg      SensorConfig
		distance uint
		want     Vehicle
	}{
		{"side mount", withMount(MountSide), 100, VehicleNotAvailable},
		{"threshold disabled", disabled, 100, VehicleNotAvailable},
		{"external near", external, 30, VehiclePresent},
		{"external far", external, 200, VehicleAbsent},
		{"secondary only near", secondary, 150, VehiclePresent},
		{"secondary only far", secondary, 151, VehicleAbsent},
		{"closed car in bracket", base, 100, VehiclePresent},
		{"closed no car", base, 250, VehicleAbsent},
		{"closed at vehicle threshold", base, 150, VehiclePresent},
		{"open door occludes", base, 40, VehicleUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EstimateVehicle(tt.cfg, tt.distance, PrimaryOpen(tt.cfg, tt.distance))
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestEngineReportsVehicle(t *testing.T) {
	e := NewEngine(SensorConfig{DoorThreshold: 50, VehicleThreshold: 150})

	if r := e.Evaluate(Input{Distance: 120, DistanceValid: true}); r.Vehicle != VehiclePresent {
		t.Errorf("expected PRESENT, got %s", r.Vehicle)
	}
	if r := e.Evaluate(Input{Distance: 20, DistanceValid: true}); r.Vehicle != VehicleUnknown {
		t.Errorf("expected UNKNOWN with door open, got %s", r.Vehicle)
	}
	// skipped cycle keeps the previous estimate
	if r := e.Evaluate(Input{}); r.Vehicle != VehicleUnknown || !r.Skipped {
		t.Errorf("expected retained UNKNOWN on skip, got %+v", r)
	}
}
