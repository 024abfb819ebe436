// Package keygen generates SSH key pairs for chaos remote access.
//
// Private keys are PEM encoded and public keys use the OpenSSH
// authorized_keys format, ready to be appended to a node's
// ~/.ssh/authorized_keys.
package keygen
