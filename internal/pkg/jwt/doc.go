// Package jwt issues and verifies HS512 operator tokens.
//
// Tokens carry a role claim that the router hands to the authorization
// enforcer. Verified claims are stored on the request context.
package jwt
