// Package executor turns host work items into provider jobs.
//
// A Coordinator reads each item's operation, model and input through
// Params, fills empty input with a default template, runs the job (sync,
// async with polling, or a status lookup) and returns one Result per item.
// Failures are attributed to their item index and do not stop sibling items
// unless FailFast is set.
package executor
