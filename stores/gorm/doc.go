// Package gorm provides GORM-backed implementations of the courseai store
// interfaces for production deployments.
//
// Unique indexes on email and username enforce the identity uniqueness
// invariants at the storage level; a create that loses a race surfaces
// courseai.ErrDuplicateKey for the Unifier's create-or-fetch handling. Open
// the database with gorm.Config{TranslateError: true} so driver duplicate
// key errors map to gorm.ErrDuplicatedKey.
//
// Emails and usernames are stored lowercased, which makes the
// case-insensitive lookups exact index matches.
package gorm
