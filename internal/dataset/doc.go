// Package dataset reads, repairs and summarises the merged signature CSV.
package dataset
