/*
Package observability provides tools for monitoring the dialogic realizer.

Metrics records prometheus counters and latency histograms for every
render, top-level or nested. LoggingHooks writes the same events to a
structured logger. Both are domain.RenderHooks and can be combined with
Combine.
*/
package observability
