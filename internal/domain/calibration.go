package domain

// Calibration holds the fixed mount constants for one device, in millimeters.
type Calibration struct {
	SensorToRiverBedMM     int
	FloodPlainToRiverBedMM int
}

// FloodThresholdMM is the distance-to-sensor value at or below which the
// flood alert condition is active.
func (c Calibration) FloodThresholdMM() int {
	return c.SensorToRiverBedMM - c.FloodPlainToRiverBedMM
}

// CalibrationTable maps device ids to their calibration constants.
// Static configuration; not mutated at runtime.
type CalibrationTable map[string]Calibration

// DefaultCalibrations returns the calibration table for the deployed sensors.
func DefaultCalibrations() CalibrationTable {
	return CalibrationTable{
		"lairdc0ee4000010109f3": {SensorToRiverBedMM: 1820, FloodPlainToRiverBedMM: 1820},
		"lairdc0ee400001012345": {SensorToRiverBedMM: 1340, FloodPlainToRiverBedMM: 1200},
	}
}

// Merge returns a copy of the table extended with extra entries. Entries in
// extra win on device id collision.
func (t CalibrationTable) Merge(extra CalibrationTable) CalibrationTable {
	merged := make(CalibrationTable, len(t)+len(extra))
	for id, cal := range t {
		merged[id] = cal
	}
	for id, cal := range extra {
		merged[id] = cal
	}
	return merged
}
