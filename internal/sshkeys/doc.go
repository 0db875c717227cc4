// Package sshkeys handles private key material for terminal connections:
// normalizing stored keys into the encoding the SSH client expects,
// computing display fingerprints, and generating fresh key pairs.
//
// Normalization is best-effort by design. Keys that cannot be parsed are
// passed through unchanged so the connection attempt itself reports the
// failure; normalization never gates a session.
package sshkeys
