// Package notifier fans one alert message out to every enabled subscriber of
// a region.
//
// Delivery is best effort: each recipient gets exactly one attempt, failures
// are collected into a Report and never stop the remaining sends. Sends are
// paced by a token bucket so a large fanout stays under the messaging
// platform's flood limits.
package notifier
