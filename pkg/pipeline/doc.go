// Package pipeline implements a small task graph executor. Leaf tasks declare the output paths they write;
// tasks are composed in series (strict happens-before) or in parallel (fan-out with a join at the end).
// Graphs are validated at construction time so that no two concurrently running tasks share output paths.
package pipeline
