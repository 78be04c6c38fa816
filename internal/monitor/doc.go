// Package monitor polls the alert feed, diffs each region against the last
// observed status and triggers a fanout on alert start and alert end.
//
// The first successful poll only records a baseline so that alerts already
// in progress at startup do not notify every subscriber. A failed poll leaves
// the snapshot untouched, so an outage never manufactures a transition.
package monitor
