// Package acl keeps the remote service's vocabulary out of the domain.
//
// The remote speaks in posts ({"id","userId","title","body"}). Posts are
// decoded and translated here; callers only ever see [domain.Quote] values
// and domain errors.
//
// Remote failures map as follows:
//   - 404 → [domain.ErrNotFound]
//   - 409 → [domain.ErrConflict]
//   - 401 and 403 → [domain.ErrForbidden]
//   - 429, 5xx, transport errors, [clients.ErrCircuitOpen] and
//     [clients.ErrMaxRetriesExceeded] → [domain.ErrUnavailable]
//   - any other 4xx → [domain.ErrValidation]
package acl
