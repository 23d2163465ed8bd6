// Package courseai implements the identity and credential core of the
// course discovery backend: a single account record per real-world user,
// reachable through two independent login paths.
//
// # Architecture
//
// Identity: the unified account record, keyed by unique email and unique
// username (both case-insensitive). An identity is created either by the
// first successful federated login (auto-provisioned, no local credential)
// or completed later with a local password.
//
// Credential: the local-password dimension of an identity. Its zero value
// means "federated only" - the identity cannot complete a local login until
// SetInitialCredential runs. There is no transition back.
//
// Unifier: the orchestration core. It resolves an incoming login attempt
// (local or federated) to an existing identity, provisions new ones, and
// drives credential-state transitions. It never holds application-level
// locks; the store's uniqueness constraints arbitrate concurrent creates.
//
// # Basic Usage
//
// Wire a store, a hasher, and a verifier at process start and pass them in
// explicitly:
//
//	store := stores.NewFSIdentityStore(dataDir)
//	unifier := courseai.NewUnifier(store, courseai.NewHasher(0))
//	verifier := courseai.NewGoogleVerifier(clientID)
//
//	claims, err := verifier.Verify(ctx, rawIDToken)
//	if err != nil { ... }
//	account, needsPassword, err := unifier.FederatedLogin(ctx, claims)
//
// # Store Implementations
//
// The stores package provides file-based stores for development and tests;
// stores/gorm and stores/gae back the same interfaces with a relational
// database and Google Cloud Datastore.
//
// # Security
//
// Secrets are hashed with bcrypt (tunable cost) and verified in constant
// time; hashes never appear in projections, errors, or logs. Federated
// tokens are fully verified against the issuer before any store write.
package courseai
