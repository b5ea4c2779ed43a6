// Package sinks implements the concrete notification consumers: structured
// logging, Pub/Sub publishing, report archiving, embedding dispatch, and
// geocoding. Each sink satisfies the notify.Sink interface and is safe for
// repeated Consume/Close cycles.
package sinks
