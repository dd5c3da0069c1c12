/*
Package tracker drives transactions through the closing pipeline.

A Tracker owns the read-decide-write cycle around the pure stage rules in
pkg/stages: it persists task completions, asks the catalog whether the current
stage is satisfied, and commits the advancement with a compare-and-set on the
stored status. Work on a single transaction is serialized in-process and,
optionally, across replicas through a ports.DistributedLocker.
*/
package tracker
