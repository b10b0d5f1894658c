// Package timeseries implements the transform engine behind the series API:
// date-indexed float series, frequency resampling and alignment, rolling
// statistics, standardization, cycle extraction, diffusion indices and
// currency conversion.
//
// All operations are pure: they return new Series/Frame values and never
// mutate their receivers. Missing values are represented as NaN and propagate
// through arithmetic; no operation panics on empty input.
package timeseries
