// Package session manages the two cookies the gateway issues: the session
// cookie carrying the opaque public token, and the short-lived redirect
// cookie that remembers where an unauthenticated caller was heading.
package session
