// Package graph assembles the relationship graph for a run: it indexes
// extracted objects, deduplicates edges, resolves name-keyed references,
// flags dangling edges, detects orphaned objects, and answers deletion
// impact questions by walking dependents in reverse.
package graph
