/*
Package http exposes the transaction tracker as a JSON API on chi.

Routes:

	GET   /health
	GET   /info
	GET   /stages
	GET   /transactions
	POST  /transactions
	GET   /transactions/{id}
	GET   /transactions/{id}/timeline
	GET   /transactions/{id}/events     (server-sent events)
	PATCH /transactions/{id}/status
	PATCH /tasks/{id}
*/
package http
