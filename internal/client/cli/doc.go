// Package cli implements the memorelay command-line client.
//
// Commands:
//
//	seal     read a memo from stdin, encrypt it and print a share link
//	open     fetch a memo by link (or id and passcode), burn it and print it
//	status   report whether a memo is still waiting to be read
//
// Encryption happens locally (see package cryptox); the relay only stores
// ciphertext. The passcode travels in the link fragment, which browsers and
// this client never send to the server.
package cli
