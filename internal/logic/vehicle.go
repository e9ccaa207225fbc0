package logic

// EstimateVehicle derives vehicle presence from the distance. primaryOpen is
// the distance sensor's own door reading.
func EstimateVehicle(cfg SensorConfig, distance uint, primaryOpen bool) Vehicle {
	if cfg.Mount == MountSide || cfg.VehicleThreshold == 0 {
		return VehicleNotAvailable
	}

	// Door status not taken from the distance sensor: the reading always
	// points at the floor (or the car roof).
	if cfg.External || cfg.EffectiveLogic() == SecondaryOnly {
		if distance <= cfg.VehicleThreshold {
			return VehiclePresent
		}
		return VehicleAbsent
	}

	// An open door occludes the sensor.
	if primaryOpen {
		return VehicleUnknown
	}
	if distance > cfg.DoorThreshold && distance <= cfg.VehicleThreshold {
		return VehiclePresent
	}
	return VehicleAbsent
}
