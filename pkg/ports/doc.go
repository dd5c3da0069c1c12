/*
Package ports defines the driven ports (interfaces) of the escrow tracker.

These interfaces decouple the tracker from external implementations, allowing it
to work with in-memory, Redis, or Postgres storage.

# Key Interfaces

  - TransactionStore: persists transactions and tasks, and applies stage changes atomically.
  - DistributedLocker: serializes advancement decisions for one transaction across replicas.
*/
package ports
