package refstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	triageErrors "github.com/harunnryd/triage/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestCollectStopsAtPageCap(t *testing.T) {
	calls := 0
	fetch := func(ctx context.Context, cursor string, limit int) ([]int, string, error) {
		calls++
		return []int{1, 2, 3, 4, 5, 6, 7}, fmt.Sprintf("cursor-%d", calls), nil
	}

	items, err := Collect[int](context.Background(), "numbers", Limits{}, fetch)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxPages, calls)
	assert.Len(t, items, 7*DefaultMaxPages)
}

func TestCollectStopsAtItemCap(t *testing.T) {
	calls := 0
	fetch := func(ctx context.Context, cursor string, limit int) ([]int, string, error) {
		calls++
		return make([]int, 300), "more", nil
	}

	items, err := Collect[int](context.Background(), "numbers", Limits{}, fetch)
	require.NoError(t, err)
	assert.Len(t, items, DefaultMaxItems)
	assert.Equal(t, 4, calls)
}

func TestCollectClampsLimitsAboveCeiling(t *testing.T) {
	calls := 0
	fetch := func(ctx context.Context, cursor string, limit int) ([]int, string, error) {
		calls++
		return make([]int, 50), "more", nil
	}

	items, err := Collect[int](context.Background(), "numbers", Limits{MaxPages: 50, MaxItems: 5000}, fetch)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxPages, calls)
	assert.Len(t, items, 50*DefaultMaxPages)

	calls = 0
	items, err = Collect[int](context.Background(), "numbers", Limits{MaxPages: 50, MaxItems: 5000, PageSize: 400}, func(ctx context.Context, cursor string, limit int) ([]int, string, error) {
		calls++
		return make([]int, limit), "more", nil
	})
	require.NoError(t, err)
	assert.Len(t, items, DefaultMaxItems)
	assert.Equal(t, 3, calls)
}

func TestCollectFollowsCursorUntilAbsent(t *testing.T) {
	var seen []string
	fetch := func(ctx context.Context, cursor string, limit int) ([]string, string, error) {
		seen = append(seen, cursor)
		assert.Equal(t, 50, limit)
		switch cursor {
		case "":
			return []string{"a"}, "c2", nil
		case "c2":
			return []string{"b"}, "c3", nil
		default:
			return []string{"c"}, "", nil
		}
	}

	items, err := Collect[string](context.Background(), "letters", Limits{PageSize: 50}, fetch)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, items)
	assert.Equal(t, []string{"", "c2", "c3"}, seen)
}

func TestCollectReturnsPartialOnFailure(t *testing.T) {
	calls := 0
	fetch := func(ctx context.Context, cursor string, limit int) ([]int, string, error) {
		calls++
		if calls == 3 {
			return nil, "", errors.New("ratelimited")
		}
		return []int{calls}, "next", nil
	}

	items, err := Collect[int](context.Background(), "numbers", Limits{}, fetch)
	require.Error(t, err)
	assert.ErrorIs(t, err, triageErrors.ErrResourceUnavailable)
	assert.Equal(t, []int{1, 2}, items)
}

func TestCollectHonoursCancelledDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fetch := func(ctx context.Context, cursor string, limit int) ([]int, string, error) {
		cancel()
		return []int{1}, "next", nil
	}

	items, err := Collect[int](ctx, "numbers", Limits{Delay: 1 << 40}, fetch)
	require.Error(t, err)
	assert.Equal(t, []int{1}, items)
}

func TestNewStoreSkipsMalformedAndArchived(t *testing.T) {
	store := NewStore(
		Identity{UserID: "U0", WorkspaceURL: "https://acme.slack.com/"},
		[]User{
			{ID: "U1", Handle: "alice", RealName: "Alice Smith"},
			{ID: "", Handle: "ghost"},
			{ID: "U2"},
			{ID: "U3", Handle: "bob"},
		},
		[]Group{
			{ID: "S1", Handle: "@oncall"},
			{ID: "S2"},
			{Handle: "nobody"},
		},
		[]Channel{
			{ID: "C1", Name: "general"},
			{ID: "C2", Name: "old", IsArchived: true},
		},
	)

	users, groups, channels := store.Stats()
	assert.Equal(t, 2, users)
	assert.Equal(t, 1, groups)
	assert.Equal(t, 1, channels)

	u, ok := store.UserByHandle("ALICE")
	require.True(t, ok)
	assert.Equal(t, "Alice Smith", u.Name())
	assert.Equal(t, "Alice", u.FirstName())

	h, ok := store.Group("S1")
	require.True(t, ok)
	assert.Equal(t, "oncall", h)

	_, ok = store.Channel("C2")
	assert.False(t, ok)
	assert.Equal(t, "U0", store.SelfID())
	assert.True(t, store.HasChannels())
}

type fakeDirectory struct {
	mu          sync.Mutex
	identityErr error
	groupsErr   error
	failKind    ChannelKind
	channels    map[ChannelKind][]Channel
	calls       map[string]int
}

func (f *fakeDirectory) count(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[key]++
}

func (f *fakeDirectory) Identity(ctx context.Context) (Identity, error) {
	f.count("identity")
	if f.identityErr != nil {
		return Identity{}, f.identityErr
	}
	return Identity{UserID: "U0", WorkspaceURL: "https://acme.slack.com/"}, nil
}

func (f *fakeDirectory) UsersPage(ctx context.Context, cursor string, limit int) ([]User, string, error) {
	f.count("users")
	if cursor == "" {
		return []User{{ID: "U1", Handle: "alice", RealName: "Alice"}}, "page2", nil
	}
	return []User{{ID: "U2", Handle: "bob", DisplayName: "Bobby"}}, "", nil
}

func (f *fakeDirectory) Groups(ctx context.Context) ([]Group, error) {
	f.count("groups")
	if f.groupsErr != nil {
		return nil, f.groupsErr
	}
	return []Group{{ID: "S1", Handle: "oncall"}}, nil
}

func (f *fakeDirectory) ChannelsPage(ctx context.Context, kind ChannelKind, cursor string, limit int) ([]Channel, string, error) {
	f.count("channels:" + string(kind))
	if kind == f.failKind {
		return nil, "", errors.New("missing_scope")
	}
	return f.channels[kind], "", nil
}

func TestBuilderBuild(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := &fakeDirectory{
		failKind: KindPrivate,
		channels: map[ChannelKind][]Channel{
			KindPublic:  {{ID: "C1", Name: "general"}, {ID: "C9", Name: "archived", IsArchived: true}},
			KindPrivate: {{ID: "G1", Name: "secret"}},
			KindGroupDM: {{ID: "G2", Name: "mpdm-alice--bob-1", IsGroupDM: true}},
			KindDM:      {{ID: "D1", IsDM: true, CounterpartID: "U1"}},
		},
	}

	store, err := NewBuilder(dir, Limits{}).Build(context.Background())
	require.NoError(t, err)

	users, groups, channels := store.Stats()
	assert.Equal(t, 2, users)
	assert.Equal(t, 1, groups)
	assert.Equal(t, 3, channels, "private listing failed, archived skipped")

	for _, kind := range ChannelKinds {
		assert.Equal(t, 1, dir.calls["channels:"+string(kind)])
	}
	assert.Equal(t, 2, dir.calls["users"])
	assert.Equal(t, "https://acme.slack.com/", store.WorkspaceURL())
}

func TestBuilderGroupsFailureDegrades(t *testing.T) {
	dir := &fakeDirectory{groupsErr: errors.New("not_allowed_token_type")}

	store, err := NewBuilder(dir, Limits{}).Build(context.Background())
	require.NoError(t, err)

	_, groups, _ := store.Stats()
	assert.Zero(t, groups)
}

func TestBuilderIdentityFailureIsFatal(t *testing.T) {
	dir := &fakeDirectory{identityErr: errors.New("invalid_auth")}

	store, err := NewBuilder(dir, Limits{}).Build(context.Background())
	require.Error(t, err)
	assert.Nil(t, store)
	assert.ErrorIs(t, err, triageErrors.ErrConnectivity)
	assert.Zero(t, dir.calls["users"], "no listing after a failed identity check")
}
