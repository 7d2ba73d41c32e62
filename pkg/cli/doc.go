// Package cli provides the backoffice command-line console.
//
// # Overview
//
// Every invocation behaves like a fresh start of the console: the persisted
// session token is refreshed once, the permission resolver loads the
// capability map of the restored user, and only then does the command run.
// Configuration comes from the BACKOFFICE_* environment (see package config).
//
// # Commands
//
// login: Authenticate and persist the token
//
//	backoffice login -email dana@shop.test -password secret
//	BACKOFFICE_PASSWORD=secret backoffice login -email dana@shop.test
//
// logout: Forget the session
//
//	backoffice logout
//
// whoami: Show the restored user and token expiry
//
//	backoffice whoami
//
// can: Check one permission. The exit status is non-zero unless allowed.
//
//	backoffice can products edit
//	backoffice can -q brands delete && echo allowed
//
// permissions: Print the capability map
//
//	backoffice permissions
//	backoffice permissions -json
//
// nav: Print the screens the user may open
//
//	backoffice nav
package cli
