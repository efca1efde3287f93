// Package l3beats owns Layer 3 (Beats) of the ECG data model.
//
// Responsibilities: R-peak detection with an adaptive threshold and a
// refractory period, heart-rate estimation, and fixed-width beat
// segmentation around detected peaks.
//
// Dependency rule: L3 may depend on L1 and L2, but never on L4+.
package l3beats
