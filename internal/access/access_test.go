package access

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"docsync/api/internal/store"
)

type grantReaderFunc func(ctx context.Context, paths []string) ([]store.AccessGrant, error)

func (f grantReaderFunc) ListAccessGrants(ctx context.Context, paths []string) ([]store.AccessGrant, error) {
	return f(ctx, paths)
}

func TestResolveBatchInheritsAncestorGrants(t *testing.T) {
	grandparent := "0001"
	parent := "00010001"
	child := "000100010001"

	reader := grantReaderFunc(func(_ context.Context, _ []string) ([]store.AccessGrant, error) {
		return []store.AccessGrant{
			{Path: grandparent, UserSub: "user-a"},
			{Path: parent, UserSub: "user-b"},
			{Path: child, UserSub: "user-c"},
		}, nil
	})

	resolved, err := ResolveBatch(context.Background(), reader, []string{grandparent, parent, child})
	if err != nil {
		t.Fatalf("ResolveBatch: %v", err)
	}

	if got := resolved[grandparent].SortedUsers(); !reflect.DeepEqual(got, []string{"user-a"}) {
		t.Errorf("grandparent users = %v", got)
	}
	if got := resolved[parent].SortedUsers(); !reflect.DeepEqual(got, []string{"user-a", "user-b"}) {
		t.Errorf("parent users = %v", got)
	}
	if got := resolved[child].SortedUsers(); !reflect.DeepEqual(got, []string{"user-a", "user-b", "user-c"}) {
		t.Errorf("child users = %v", got)
	}
}

func TestResolveBatchTeams(t *testing.T) {
	parent := "0002"
	child := "00020001"

	reader := grantReaderFunc(func(_ context.Context, _ []string) ([]store.AccessGrant, error) {
		return []store.AccessGrant{
			{Path: parent, Team: "team-p"},
			{Path: child, Team: "team-c"},
		}, nil
	})

	resolved, err := ResolveBatch(context.Background(), reader, []string{parent, child})
	if err != nil {
		t.Fatalf("ResolveBatch: %v", err)
	}
	if got := resolved[parent].SortedTeams(); !reflect.DeepEqual(got, []string{"team-p"}) {
		t.Errorf("parent teams = %v", got)
	}
	if got := resolved[child].SortedTeams(); !reflect.DeepEqual(got, []string{"team-c", "team-p"}) {
		t.Errorf("child teams = %v", got)
	}
}

func TestResolveBatchAncestorOutsideBatch(t *testing.T) {
	// The ancestor document itself is not part of the resolved set, but its
	// grant must still reach the descendant: ancestors are looked up by
	// path regardless of batch membership.
	child := "00030001"

	var queried []string
	reader := grantReaderFunc(func(_ context.Context, paths []string) ([]store.AccessGrant, error) {
		queried = paths
		return []store.AccessGrant{{Path: "0003", UserSub: "user-root"}}, nil
	})

	resolved, err := ResolveBatch(context.Background(), reader, []string{child})
	if err != nil {
		t.Fatalf("ResolveBatch: %v", err)
	}
	if !reflect.DeepEqual(queried, []string{"0003", "00030001"}) {
		t.Errorf("queried ancestor paths = %v", queried)
	}
	if got := resolved[child].SortedUsers(); !reflect.DeepEqual(got, []string{"user-root"}) {
		t.Errorf("child users = %v", got)
	}
}

func TestResolveBatchNoGrants(t *testing.T) {
	reader := grantReaderFunc(func(_ context.Context, _ []string) ([]store.AccessGrant, error) {
		return nil, nil
	})

	resolved, err := ResolveBatch(context.Background(), reader, []string{"0005"})
	if err != nil {
		t.Fatalf("ResolveBatch: %v", err)
	}
	entry, ok := resolved["0005"]
	if !ok {
		t.Fatal("path missing from result")
	}
	if len(entry.Users) != 0 || len(entry.Teams) != 0 {
		t.Errorf("expected empty sets, got %v / %v", entry.Users, entry.Teams)
	}
}

func TestResolveBatchReaderError(t *testing.T) {
	wantErr := errors.New("boom")
	reader := grantReaderFunc(func(_ context.Context, _ []string) ([]store.AccessGrant, error) {
		return nil, wantErr
	})

	if _, err := ResolveBatch(context.Background(), reader, []string{"0001"}); !errors.Is(err, wantErr) {
		t.Errorf("error = %v, want wrapped %v", err, wantErr)
	}
}
