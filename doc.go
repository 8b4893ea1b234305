// Package auth implements the authentication and authorization core for a
// property booking platform: credential issuance with rotating refresh
// tokens, account lockout, and role/permission gates layered over a MongoDB
// backed credential store.
package auth
