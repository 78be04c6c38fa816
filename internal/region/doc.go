// Package region holds the fixed oblast catalog and the per-region alert status codes
// reported by the alerts feed.
package region
