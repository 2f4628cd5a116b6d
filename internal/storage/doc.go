// Package storage coordinates permanent file storage: content hashing,
// optional encryption, fee quote and payment, upload, and registration.
//
// Prepare and Execute are split so the batch path can pay for the next file
// while the previous one uploads. Prepare returns a tagged outcome; callers
// switch on AlreadyExists and *Prepared.
package storage
