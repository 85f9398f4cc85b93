// Package gateway implements the forward-auth request protocol: the
// proxy-facing check endpoint, the login and logout handlers, and the
// same-origin access middleware, composed from the credential store, the
// policy engine, the rate limiters, and the session cookies.
package gateway
