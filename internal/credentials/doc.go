// Package credentials owns the username to password-verifier table and the
// derived session tokens.
//
// The private verifier is a bcrypt hash used only for login-time password
// checks. The public token carried in the session cookie is an HMAC of the
// username and private verifier keyed by a process-wide common salt, so the
// cookie value cannot be used to attack the verifier offline. Rotating the
// salt invalidates every outstanding token at once.
package credentials
