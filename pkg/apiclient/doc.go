// Package apiclient talks to the back office REST API.
//
// Three endpoints are used, all relative to the configured base URL:
//
//	POST /login               {email, password} -> {token, user}
//	POST /refresh-token       Authorization: Bearer <token> -> {token[, user]}
//	GET  /permissions/{id}    -> [{resourceType, action}, ...] or {"$values": [...]}
//
// Calls are made once. Non-2xx responses are returned as *Error and 401/403
// also match ErrUnauthorized:
//
//	res, err := client.Login(ctx, email, password)
//	if errors.Is(err, apiclient.ErrUnauthorized) {
//		// bad credentials
//	}
package apiclient
