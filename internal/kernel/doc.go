// Package kernel runs submitted tasks on a fixed pool of workers, each bound
// for its whole life to one arena.
//
// A worker loops while the kernel is running:
//   - pop the next task, waiting at most the poll interval
//   - allocate current_task in its arena
//   - run the task (errors and panics become a failed result)
//   - publish task_complete or task_failed with the task as payload
//   - deallocate current_task, on every exit path
//
// Dequeue order follows submission order. Completion order does not, since
// workers run in parallel.
//
// Stop is cooperative: it is observed between tasks and never interrupts a
// running one. HandleFailState clears one arena on operator request and is
// never triggered by a task failure.
//
// Snapshots map arena name to that arena's data. They can be saved at any
// time (each arena is copied under its lock) but only loaded while stopped.
// current_task is never written to or restored from a snapshot.
package kernel
