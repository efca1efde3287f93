// Package pipeline runs one analysis end to end: fetch a chunk snapshot,
// condition the waveform, estimate heart rate, classify and reconcile, then
// persist the result.
//
// Responsibilities: ordering the layer packages and owning every slice of a
// run. Each run builds its own Recording; nothing is shared between runs.
//
// Dependency rule: pipeline may depend on every ecg layer and on the
// chunkstore, classifier and db packages. Layer packages never import it.
package pipeline
