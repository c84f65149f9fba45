/*
Package domain contains the core models shared by the dialogic engine.

It defines the template catalog (domains, templates, variants and the intent
schema), the persisted session record, the classified error model and the
render lifecycle hooks. The package performs no I/O.

# Key Entities

  - Catalog: every loaded domain plus the schema of top-level intents.
  - Template: an ordered list of variants and its selection mode.
  - Session: the persisted per-conversation record (history and context).
  - Error: a failure classified as syntax, reference, type or runtime.
*/
package domain
