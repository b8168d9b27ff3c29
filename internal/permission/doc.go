// Package permission tracks backend-originated approval gates for risky
// tool actions.
//
// Each request is an independent state machine:
//
//	pending -> approved | denied (user response)
//	pending -> expired            (fixed window from creation)
//
// Expiry is computed against the creation timestamp, never a decrementing
// counter, so the window holds across app suspend/resume. Once terminal a
// request is immutable and no response frame can be transmitted for it.
//
// Requests are scoped per agent but tracked globally; several pending
// requests for the same agent are valid and independent.
package permission
