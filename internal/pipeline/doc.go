// Package pipeline runs the stages of one sitewalk run in sequence: the
// optional login, the traversal, the report files and the history record.
//
// Each stage is a Step operating on a *model.Run. A failed step stops the
// pipeline, which is how a failed login prevents both the traversal and
// the report. Steps implementing FinalStep still run after cancellation,
// so a run stopped by its deadline or by Ctrl-C is reported with the pages
// visited so far.
//
// BatchProcessor walks several seeds with bounded concurrency using
// errgroup. Each seed runs on its own browser tab with its own pipeline.
package pipeline
