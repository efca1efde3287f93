// Package l1chunks owns Layer 1 (Chunks) of the ECG data model.
//
// Responsibilities: turning the unordered chunk map stored by the capture
// device into one time-ordered sample sequence, and the inverse split used
// when uploading. Key types: ChunkMap, Waveform, Report.
//
// Dependency rule: L1 depends on nothing above it. No I/O happens here.
package l1chunks
