// Package guard enforces membership and role policy per request.
//
// Guards are plain function wrappers. A guard resolves a GuardContext and
// hands it to the next handler as an argument; nothing is stored in the
// request context or in package state. Rejections are returned as errors
// wrapping ErrUnauthenticated, ErrMemberNotFound or ErrForbidden and mapped
// to HTTP status codes by Serve. A handler returning one of those sentinels
// itself gets a 500; handlers pick a status with *HTTPError.
package guard
