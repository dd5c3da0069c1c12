/*
Package escrow tracks real estate closing transactions from accepted offer to keys.

A transaction moves through a fixed pipeline of stages (under contract,
inspection period, financing, clear to close, closed). Each stage is gated by
checklist tasks identified by title; completing the last gating task of the
current stage advances the transaction to the next one, one stage at a time.

The stage rules themselves are pure functions in pkg/stages. This package wires
them to storage and concurrency control:

	svc, err := escrow.New()
	if err != nil {
		log.Fatal(err)
	}
	defer svc.Close()

	tx, _ := svc.Open(ctx, tracker.OpenRequest{OfferID: "offer-42"})
	res, _ := svc.UpdateTask(ctx, tx.Tasks[0].ID, true)
	if res.AdvancedTo != nil {
		fmt.Println("now in", res.AdvancedTo.Label)
	}

By default transactions live in memory. Use WithStore to plug in the Redis or
PostgreSQL adapters and WithLocker to coordinate several replicas.
*/
package escrow
