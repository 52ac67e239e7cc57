// Package harvester drives one harvest from a validated request to a final
// dataset.
//
// The worker keeps a FIFO queue of regions seeded with the request's root.
// For each region it fetches the first page and asks the partitioner what to
// do: oversized regions are replaced by their quadrants or time halves at
// the tail of the queue, the rest are paginated to the end. Records are
// appended to an accumulator and progress is reported after every page.
// When the queue is empty the accumulator is deduplicated by asset URL and,
// optionally, enriched with owner hometowns.
//
// Lifecycle:
//
//	idle -> validating -> running -> draining -> finished
//	                  \-> failed  \-> halted
//
// Cancel sets a flag that the worker polls before every dequeue, before
// every page fetch and inside every asset download chunk. A halted or
// failed run never returns partial data.
//
// Usage:
//
//	h := harvester.New(harvester.NewClientFactory(cfg, cache, log), harvester.OptionsFromConfig(cfg))
//	ds, err := h.Run(ctx, req)
package harvester
