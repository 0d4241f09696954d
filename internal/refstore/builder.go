package refstore

import (
	"context"
	"log/slog"

	triageErrors "github.com/harunnryd/triage/internal/errors"
	"github.com/harunnryd/triage/internal/logger"

	"golang.org/x/sync/errgroup"
)

// ChannelKind selects one conversation listing.
type ChannelKind string

const (
	KindPublic  ChannelKind = "public_channel"
	KindPrivate ChannelKind = "private_channel"
	KindGroupDM ChannelKind = "mpim"
	KindDM      ChannelKind = "im"
)

// ChannelKinds is the fixed set of listings fetched for every store.
var ChannelKinds = []ChannelKind{KindPublic, KindPrivate, KindGroupDM, KindDM}

// Directory is the provider surface the builder reads from.
type Directory interface {
	Identity(ctx context.Context) (Identity, error)
	UsersPage(ctx context.Context, cursor string, limit int) ([]User, string, error)
	Groups(ctx context.Context) ([]Group, error)
	ChannelsPage(ctx context.Context, kind ChannelKind, cursor string, limit int) ([]Channel, string, error)
}

type Builder struct {
	dir    Directory
	limits Limits
}

func NewBuilder(dir Directory, limits Limits) *Builder {
	return &Builder{dir: dir, limits: limits.withDefaults()}
}

// Build runs the identity check and the reference listings. Only a failed
// identity check is fatal; every other listing degrades to partial or empty data.
func (b *Builder) Build(ctx context.Context) (*Store, error) {
	log := logger.From(ctx)

	identity, err := b.dir.Identity(ctx)
	if err != nil {
		return nil, triageErrors.WrapWithCategory(err, "identity check failed", triageErrors.ErrConnectivity)
	}
	if identity.UserID == "" {
		return nil, triageErrors.Connectivity("identity check returned no user id")
	}

	users, err := Collect[User](ctx, "users", b.limits, b.dir.UsersPage)
	if err != nil {
		log.Warn("User listing incomplete", "resource", "users", "kept", len(users), "error", err)
	}

	groups, err := b.dir.Groups(ctx)
	if err != nil {
		log.Warn("Group listing unavailable", "resource", "groups", "error", err)
		groups = nil
	}

	channels := b.collectChannels(ctx, log)

	store := NewStore(identity, users, groups, channels)
	nUsers, nGroups, nChannels := store.Stats()
	log.Info("Reference store built",
		"self", identity.UserID,
		"users", nUsers,
		"groups", nGroups,
		"channels", nChannels,
	)
	return store, nil
}

// collectChannels fetches the channel listings concurrently. Each goroutine
// owns one result slot, so no locking is needed.
func (b *Builder) collectChannels(ctx context.Context, log *slog.Logger) []Channel {
	results := make([][]Channel, len(ChannelKinds))

	var g errgroup.Group
	for i, kind := range ChannelKinds {
		g.Go(func() error {
			fetch := func(ctx context.Context, cursor string, limit int) ([]Channel, string, error) {
				return b.dir.ChannelsPage(ctx, kind, cursor, limit)
			}
			channels, err := Collect[Channel](ctx, "channels:"+string(kind), b.limits, fetch)
			if err != nil {
				log.Warn("Channel listing incomplete", "resource", string(kind), "kept", len(channels), "error", err)
			}
			results[i] = channels
			return nil
		})
	}
	_ = g.Wait()

	var all []Channel
	for _, r := range results {
		all = append(all, r...)
	}
	return all
}
