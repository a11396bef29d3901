// Package tabprep prepares mixed tabular data for generative model training.
//
// Every column of a raw table is converted into a fixed-layout numeric
// representation, and generated numeric output can be converted back into the
// original domain using the metadata captured at fit time:
//
//   - Continuous columns are decomposed with a Gaussian mixture: each value
//     becomes a normalized within-mode scalar plus a vector of per-mode
//     responsibilities (package preprocessing, package mixture).
//   - Categorical columns are encoded against a deterministic, sorted
//     vocabulary (package preprocessing).
//   - The Preprocessor orchestrates both per column and owns the fitted
//     metadata, so transform and reverse-transform stay mutual inverses.
//
// Transformed tables can be persisted to a single-file container together
// with their metadata (package archive), wrapped as a row-iterable sample
// source for a training consumer (package dataflow), or produced straight
// from CSV files (package dataset).
package tabprep
