package stores

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	ca "github.com/courseai/courseai"
)

func seedIdentity(t *testing.T, store *FSIdentityStore, username, email string) *ca.Identity {
	t.Helper()
	identity, err := store.Create(context.Background(), &ca.Identity{
		ID:       ca.NewID(),
		Username: username,
		Email:    email,
		Role:     ca.DefaultRole,
	})
	if err != nil {
		t.Fatal(err)
	}
	return identity
}

func TestFSIdentityStoreLookups(t *testing.T) {
	ctx := context.Background()
	store := NewFSIdentityStore(t.TempDir())
	created := seedIdentity(t, store, "JaneDoe", "Jane@Example.com")

	if created.Username != "janedoe" || created.Email != "jane@example.com" {
		t.Fatalf("created record not normalized: %+v", created)
	}

	tests := []struct {
		name   string
		lookup func() (*ca.Identity, error)
		found  bool
	}{
		{"email exact", func() (*ca.Identity, error) { return store.FindByEmail(ctx, "jane@example.com") }, true},
		{"email case-insensitive", func() (*ca.Identity, error) { return store.FindByEmail(ctx, "JANE@EXAMPLE.COM") }, true},
		{"email unknown", func() (*ca.Identity, error) { return store.FindByEmail(ctx, "nobody@example.com") }, false},
		{"identifier by username", func() (*ca.Identity, error) { return store.FindByIdentifier(ctx, "JaneDoe") }, true},
		{"identifier by email", func() (*ca.Identity, error) { return store.FindByIdentifier(ctx, "jane@example.com") }, true},
		{"identifier no substring match", func() (*ca.Identity, error) { return store.FindByIdentifier(ctx, "jane") }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.lookup()
			if err != nil {
				t.Fatal(err)
			}
			if (got != nil) != tt.found {
				t.Errorf("found = %v, want %v", got != nil, tt.found)
			}
			if got != nil && got.ID != created.ID {
				t.Errorf("resolved %q, want %q", got.ID, created.ID)
			}
		})
	}
}

func TestFSIdentityStoreUsernameExcluding(t *testing.T) {
	ctx := context.Background()
	store := NewFSIdentityStore(t.TempDir())
	seedIdentity(t, store, "janedoe", "jane@example.com")

	holder, err := store.FindByUsernameExcluding(ctx, "janedoe", "other@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if holder == nil {
		t.Error("expected a holder for someone else's username")
	}

	holder, err = store.FindByUsernameExcluding(ctx, "janedoe", "jane@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if holder != nil {
		t.Error("own username should not count as held")
	}
}

func TestFSIdentityStoreDuplicates(t *testing.T) {
	ctx := context.Background()
	store := NewFSIdentityStore(t.TempDir())
	seedIdentity(t, store, "janedoe", "jane@example.com")

	_, err := store.Create(ctx, &ca.Identity{ID: ca.NewID(), Username: "other", Email: "JANE@example.com"})
	if !errors.Is(err, ca.ErrDuplicateKey) {
		t.Errorf("duplicate email: err = %v, want ErrDuplicateKey", err)
	}

	_, err = store.Create(ctx, &ca.Identity{ID: ca.NewID(), Username: "JaneDoe", Email: "new@example.com"})
	if !errors.Is(err, ca.ErrDuplicateKey) {
		t.Errorf("duplicate username: err = %v, want ErrDuplicateKey", err)
	}
}

func TestFSIdentityStoreConcurrentCreate(t *testing.T) {
	ctx := context.Background()
	store := NewFSIdentityStore(t.TempDir())

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.Create(ctx, &ca.Identity{
				ID:       ca.NewID(),
				Username: fmt.Sprintf("user%d", i),
				Email:    "same@example.com",
			})
		}(i)
	}
	wg.Wait()

	var wins, dups int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ca.ErrDuplicateKey):
			dups++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 || dups != n-1 {
		t.Errorf("wins = %d, duplicates = %d, want 1 and %d", wins, dups, n-1)
	}
}

func TestFSIdentityStoreUpdate(t *testing.T) {
	ctx := context.Background()
	store := NewFSIdentityStore(t.TempDir())
	seedIdentity(t, store, "janedoe", "jane@example.com")
	seedIdentity(t, store, "held", "other@example.com")

	t.Run("missing identity is nil nil", func(t *testing.T) {
		got, err := store.Update(ctx, "ghost@example.com", ca.IdentityPatch{})
		if err != nil || got != nil {
			t.Errorf("got %v, %v; want nil, nil", got, err)
		}
	})

	t.Run("patch applies and persists", func(t *testing.T) {
		name := "Jane D."
		username := "Jane_Doe"
		cred := ca.Credential{Hash: "$2a$fakehash"}
		updated, err := store.Update(ctx, "jane@example.com", ca.IdentityPatch{
			DisplayName: &name,
			Username:    &username,
			Credential:  &cred,
		})
		if err != nil {
			t.Fatal(err)
		}
		if updated.Username != "jane_doe" {
			t.Errorf("username = %q, want normalized", updated.Username)
		}

		reloaded, err := store.FindByEmail(ctx, "jane@example.com")
		if err != nil {
			t.Fatal(err)
		}
		if reloaded.DisplayName != "Jane D." || !reloaded.Credential.Enabled() {
			t.Errorf("reloaded = %+v", reloaded)
		}
		if reloaded.Credential.Hash != "$2a$fakehash" {
			t.Errorf("hash did not survive round trip: %q", reloaded.Credential.Hash)
		}
	})

	t.Run("username conflict", func(t *testing.T) {
		username := "held"
		_, err := store.Update(ctx, "jane@example.com", ca.IdentityPatch{Username: &username})
		if !errors.Is(err, ca.ErrDuplicateKey) {
			t.Errorf("err = %v, want ErrDuplicateKey", err)
		}
	})
}

func TestFSIdentityStoreCredentialNullRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewFSIdentityStore(t.TempDir())
	seedIdentity(t, store, "janedoe", "jane@example.com")

	reloaded, err := store.FindByEmail(ctx, "jane@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.Credential.Enabled() {
		t.Error("identity without credential should stay credential-less after reload")
	}
}

func TestFSIdentityStoreList(t *testing.T) {
	ctx := context.Background()
	store := NewFSIdentityStore(t.TempDir())
	seedIdentity(t, store, "alpha", "a@example.com")
	seedIdentity(t, store, "beta", "b@example.com")

	all, err := store.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("len = %d, want 2", len(all))
	}
}
