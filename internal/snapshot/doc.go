// Package snapshot defines the records, outcomes, and collaborator interfaces
// shared by the harvesting pipeline.
package snapshot
