// Package feed fetches the per-oblast air raid alert string from the alerts API.
//
// The endpoint answers with a JSON string whose characters are status codes,
// one per feed index ('A' active, 'P' partial, 'N' none).
package feed
