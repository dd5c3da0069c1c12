/*
Package domain contains the core domain models of the escrow tracker.

It defines the entities of a closing transaction: the stages it moves through,
the checklist tasks gating each stage, and the events emitted when either changes.
This package is kept pure and free of external dependencies like I/O or persistence,
following Hexagonal Architecture principles.

# Key Entities

  - StageID / StageDefinition: one of five fixed phases and the task titles it requires.
  - Task / TaskState: a checklist item, and the title+completed projection the evaluator reads.
  - Transaction: an accepted offer being tracked through closing.
  - LifecycleHooks: callbacks for auditing task updates and stage changes.
*/
package domain
