// Package l4classify owns Layer 4 (Decision) of the ECG data model.
//
// Responsibilities: turning a classifier prediction and a heart rate into a
// final label, confidence and risk level. Reconcile is a pure function; it
// never performs I/O and never sees a partial prediction.
//
// Dependency rule: L4 may depend on L1–L3.
package l4classify
