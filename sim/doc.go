// Package sim provides the core page replacement engine for pagesim.
//
// # Reading Guide
//
// Start with these three files to understand the simulation kernel:
//   - frame_table.go: fixed array of physical frames with load and access timestamps
//   - victim.go: LRU and ML-hybrid victim selection with typed fallbacks
//   - engine.go: the per-access hit/fault cycle, prediction scoring and counters
//
// # Architecture
//
// The sim package defines interfaces and bridge types; implementations live in
// sub-packages:
//   - sim/predict/: next-page predictor families (ngram, markov, sequence)
//   - sim/fleet/: one engine per family plus the shared training accumulator
//   - sim/workload/: synthetic access sequence generation
//   - sim/trace/: decision trace recording
//
// Sub-packages register their predictor families via init() functions that
// call RegisterFamily; NewPredictor builds them by name.
//
// # Key Interfaces
//
// The extension points are small interfaces:
//   - Predictor: fit, predict the next page, score eviction candidates, export and import state
//   - Harness: replay one sequence through isolated engines per family
//   - TrainingAccumulator: bounded training window keyed by workload type
package sim
