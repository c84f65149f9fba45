/*
Package history tracks conversation progress as a tree of threads.

Step identifiers follow the shape "<thread>.<sequence>-<name>[-<tag>]", for
example "1.0.2-confirmOrder". The dotted prefix minus its final segment names
the thread ("1.0"), the final segment is the step's position within it, and a
new thread hangs off the thread two segments up when that one was already
seen, otherwise off the implicit "root" thread.

A History is created empty or from a Snapshot, mutated only by RecordStep,
and exported back into a Snapshot for persistence between calls.
*/
package history
