// Package eval defines the narrow request/response protocol between the
// snippet engine and the external scriptlet evaluator, plus the staging
// accumulator for file-scoped setup code.
//
// The engine never interprets scriptlet source itself: guard expressions
// and scriptlet blocks are opaque text dispatched to an Evaluator
// implementation. Evaluator failures are non-fatal to callers by
// contract; guards degrade to false and scriptlets to empty text.
package eval
