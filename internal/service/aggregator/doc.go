// Package aggregator folds classified records into snapshots.
//
// The Aggregator owns one mutable current snapshot. A stage header finalizes
// it into the history ring and opens the next one; every other record is
// merged into the current snapshot by kind. A single goroutine writes;
// any number of goroutines read through copies.
package aggregator
