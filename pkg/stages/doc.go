/*
Package stages implements the stage model of a closing transaction.

A transaction moves through five fixed stages in strict order. Each stage names the
task titles that must be completed before the transaction may leave it:

	under_contract -> inspection_period -> financing -> clear_to_close -> closed

The package is pure: the catalog is immutable, and every function is a total,
side-effect free computation over its inputs. Callers own persistence and must
serialize decisions for a single transaction themselves (see package tracker).

# Usage

	next, ok := stages.ShouldAutoAdvance(tx.Status, domain.TaskStates(tasks))
	if ok {
		// persist next with a compare-and-set on tx.Status
	}
*/
package stages
