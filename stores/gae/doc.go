// Package gae provides Google Cloud Datastore implementations of the
// courseai store interfaces.
//
// Datastore has no unique constraints, so uniqueness of email and username
// is enforced with index entities (one per email, one per username) created
// in the same transaction as the identity. A create that finds an index
// entity already present fails with courseai.ErrDuplicateKey, which gives
// the Unifier the same race semantics as a relational unique index.
package gae
