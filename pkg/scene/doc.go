// Package scene provides a reference capture source for the visibility
// decider: two string-keyed scene documents (start and end) describing a node
// tree, each node carrying a visibility code and a parent.
//
// Nodes are identified by their stable ID when one is set and by their Key
// otherwise, so a node that keeps its ID across scenes is treated as the same
// node even when its key changes. Parents may reference either form.
//
// Documents are YAML or JSON and are decoded through internal/hydrate. End
// scenes can be written out in full or derived from a start scene with a
// Patch. Snapshots can be persisted through a Store; MemoryStore tags every
// save with a snapshot id and a content fingerprint used as an ETag.
package scene
