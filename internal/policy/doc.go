// Package policy implements the access-rule engine that decides whether a
// (subdomain, path, username) triple is permitted.
//
// Rules are grouped per subdomain and kept sorted by descending pattern
// length, so the most specific pattern is always tested first. The first
// matching rule is decisive: a matched-but-unauthorized rule denies even if
// a broader rule lower in the ordering would have granted. No match at all
// denies.
package policy
