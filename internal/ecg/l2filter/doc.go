// Package l2filter owns Layer 2 (Conditioning) of the ECG data model.
//
// Responsibilities: replacing ADC saturation artifacts, removing baseline
// drift and rescaling for the display and model profiles.
//
// Dependency rule: L2 may depend on L1, but never on L3+. All functions are
// pure and return fresh slices.
package l2filter
