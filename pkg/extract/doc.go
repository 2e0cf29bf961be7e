/*
Package extract implements the per-object-type extraction pipelines.

Every extractor runs the same four stages: Fetch pulls raw items from the
REST or SOAP API, Enrich decorates each item concurrently (folder
breadcrumbs, detail calls, cached lookups), Transform normalizes items into
output objects, and Relationships derives dependency edges between objects.
Run drives the stages, collecting per-item errors without aborting the run,
so a single bad object never loses the rest of the inventory.

Extractors register themselves by name; Lookup and All build them for the
runner.
*/
package extract
