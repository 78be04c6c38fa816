// Package scheduler runs named housekeeping jobs on cron specs.
//
// A job never overlaps with itself: a trigger that fires while the previous
// run is still going is skipped and counted.
package scheduler
