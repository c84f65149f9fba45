/*
Package session implements per-conversation persistence around the realizer.

A Manager serializes access to one session id with an in-process,
reference-counted mutex and, optionally, a distributed lock shared by
replicas. Manager.Render loads the session's history snapshot, renders with
it and saves the advanced snapshot back in a single critical section.
*/
package session
