/*
Package types defines the shared data model for sfmc-inventory.

Everything that crosses package boundaries lives here: normalized objects
(Object, Folder), the relationship model (Edge, EdgeKind, OrphanedObject),
the snapshot manifest (Manifest, Statistics), and the error taxonomy
(ExtractError with stable ErrorCode values).

Objects keep common identity fields typed and carry type-specific values in a
Properties map that is flattened on JSON output, so each extractor can emit
the field shape of its source API without a struct per endpoint variant.

Edges are directed and identified by the (sourceType, sourceId,
relationshipType, targetType, targetId) tuple; the graph builder deduplicates
on Edge.Key and flags edges whose target no extractor produced as dangling.
*/
package types
