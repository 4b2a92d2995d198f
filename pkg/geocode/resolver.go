package geocode

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dispatch-cli/pkg/ttlcache"
)

// detachedSaveTimeout bounds background persistent-cache writes.
const detachedSaveTimeout = 10 * time.Second

// Resolver walks the provider chain for one address, fronted by a local TTL
// cache and a shared persistent store. Negative results are never cached.
type Resolver struct {
	providers []Provider
	local     *ttlcache.Cache[Result]
	store     Store // optional persistent tier
}

// ResolveOpts are per-lookup options.
type ResolveOpts struct {
	// NoCache bypasses both cache tiers entirely, reads and writes.
	NoCache bool
	// Station selects a region centroid for location bias.
	Station string
	// ForceProvider calls exactly the named provider, skipping the chain.
	ForceProvider string
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithStore attaches the shared persistent cache tier.
func WithStore(s Store) ResolverOption {
	return func(r *Resolver) {
		r.store = s
	}
}

// NewResolver creates a Resolver trying providers in the given order.
// localTTL controls the in-process cache tier.
func NewResolver(localTTL time.Duration, providers []Provider, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		providers: providers,
		local:     ttlcache.New[Result](localTTL),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// cacheKey is the shared key scheme for both cache tiers.
func cacheKey(address, area string) string {
	return address + "|" + area
}

// Resolve geocodes a single address. A nil address returns an unmatched
// result with no I/O. Lookup failures are reported in Result.Err; Resolve
// itself never fails.
func (r *Resolver) Resolve(ctx context.Context, address *string, area string, opts ResolveOpts) Result {
	if address == nil || *address == "" {
		return Result{Matched: false}
	}
	addr := *address

	if !opts.NoCache {
		if cached, ok := r.checkTiers(ctx, addr, area); ok {
			return cached
		}
	}

	bias := BiasCentroid(opts.Station, area)
	q := Query{Address: addr, Area: area, Bias: bias}

	var res Result
	if opts.ForceProvider != "" {
		res = r.callForced(ctx, q, opts.ForceProvider)
	} else {
		res = r.walkChain(ctx, q)
	}
	res.CentroidUsed = bias.Name

	if res.Matched && !opts.NoCache {
		r.local.Set(cacheKey(addr, area), res)
		r.saveDetached(addr, area, res)
	}
	return res
}

// checkTiers consults the local cache, then the persistent store. A
// persistent hit backfills the local tier.
func (r *Resolver) checkTiers(ctx context.Context, address, area string) (Result, bool) {
	key := cacheKey(address, area)
	if cached, ok := r.local.Get(key); ok {
		return cached, true
	}

	if r.store == nil {
		return Result{}, false
	}

	stored, err := r.store.Get(ctx, address, area)
	if err != nil {
		// The local tier keeps working when the shared store is down.
		zap.L().Warn("geocode: persistent cache read failed",
			zap.String("address", address),
			zap.Error(err),
		)
		return Result{}, false
	}
	if stored == nil || !stored.Matched {
		return Result{}, false
	}

	r.local.Set(key, *stored)
	return *stored, true
}

// walkChain tries each provider in order, stopping at the first match.
// Only providers before the winner are invoked.
func (r *Resolver) walkChain(ctx context.Context, q Query) Result {
	var lastErr error
	for _, p := range r.providers {
		result, err := p.Geocode(ctx, q)
		if err != nil {
			zap.L().Debug("geocode: provider failed, trying next",
				zap.String("provider", p.Name()),
				zap.String("address", q.Address),
				zap.Error(err),
			)
			lastErr = err
			continue
		}
		if result != nil && result.Matched {
			return *result
		}
	}

	miss := Result{
		Matched:      false,
		Query:        joinParts(q.Address, q.Area),
		UserLocation: q.Bias.UserLocation(),
	}
	if lastErr != nil {
		miss.Err = lastErr.Error()
	} else {
		miss.Err = "no provider returned coordinates"
	}
	return miss
}

// callForced invokes exactly the named provider.
func (r *Resolver) callForced(ctx context.Context, q Query, name string) Result {
	for _, p := range r.providers {
		if p.Name() != name {
			continue
		}
		result, err := p.Geocode(ctx, q)
		if err != nil {
			return Result{
				Matched:      false,
				Err:          err.Error(),
				Query:        joinParts(q.Address, q.Area),
				UserLocation: q.Bias.UserLocation(),
			}
		}
		return *result
	}
	return Result{
		Matched: false,
		Err:     eris.Errorf("geocode: unknown provider %q", name).Error(),
	}
}

// saveDetached writes a successful result to the persistent tier without
// blocking the caller. Failures are logged and discarded; the write keeps
// running even if the originating request is abandoned.
func (r *Resolver) saveDetached(address, area string, res Result) {
	if r.store == nil {
		return
	}
	go func() {
		defer func() {
			if p := recover(); p != nil {
				zap.L().Error("geocode: persistent cache save panicked", zap.Any("panic", p))
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), detachedSaveTimeout)
		defer cancel()
		if err := r.store.Save(ctx, address, area, res); err != nil {
			zap.L().Warn("geocode: persistent cache save failed",
				zap.String("address", address),
				zap.Error(err),
			)
		}
	}()
}
