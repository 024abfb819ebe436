// Package async provides utilities for parallel task execution with
// error collection.
//
// [RunPool] executes operations on a bounded set of goroutines and returns
// every task's result in submission order. The chaos dispatcher uses it to
// fan out one worker per selected node.
package async
