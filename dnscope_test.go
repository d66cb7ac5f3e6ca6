package dnscope

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/dnscope/dnscope/internal/mocks"
	"github.com/google/go-cmp/cmp"
)

// newCountingResolver creates a mock resolver returning the given
// addresses and counting how many times it is invoked.
func newCountingResolver(calls *atomic.Int64, addrs []string, err error) *mocks.Resolver {
	return &mocks.Resolver{
		MockLookupHost: func(ctx context.Context, domain string) ([]string, error) {
			calls.Add(1)
			if err != nil {
				return nil, err
			}
			return addrs, nil
		},
		MockNetwork: func() string {
			return "mocked"
		},
		MockAddress: func() string {
			return ""
		},
	}
}

func TestLookupAllHostAddrInvalidArgument(t *testing.T) {
	svc := NewService(nil, nil, nil)
	addrs, err := svc.LookupAllHostAddr(context.Background(), "")
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatal("not the error we expected", err)
	}
	if errors.Is(err, ErrUnknownHost) {
		t.Fatal("an empty hostname must not look like a resolution failure")
	}
	var resErr *ResolutionError
	if errors.As(err, &resErr) {
		t.Fatal("a caller bug must not be wrapped as a ResolutionError")
	}
	if addrs != nil {
		t.Fatal("expected nil addrs here")
	}
}

func TestLookupAllHostAddrIsCaseInsensitive(t *testing.T) {
	var calls atomic.Int64
	svc := NewService(nil, nil, newCountingResolver(&calls, []string{"10.0.0.1"}, nil))
	ctx := WithScope(context.Background())
	first, err := svc.LookupAllHostAddr(ctx, "WWW.Example.Com")
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.LookupAllHostAddr(ctx, "www.example.com")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatal(diff)
	}
	if calls.Load() != 1 {
		t.Fatal("expected both spellings to share one cache entry, got", calls.Load())
	}
}

func TestScopedOverrideWinsOverStaticTable(t *testing.T) {
	config, err := NewBuilder().
		Map(Hosts("www.example.com"), To("10.0.0.1")).
		Build()
	if err != nil {
		t.Fatal(err)
	}
	var calls atomic.Int64
	svc := NewService(config, nil, newCountingResolver(&calls, nil, errors.New("should not be called")))
	ctx := WithScope(context.Background())
	svc.SetOverride(ctx, "www.example.com", "10.0.0.2")
	addrs, err := svc.LookupAllHostAddr(ctx, "www.example.com")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(AddrSet{net.IP{10, 0, 0, 2}}, addrs); diff != "" {
		t.Fatal(diff)
	}
	// A context without the override sees the static table instead.
	other, err := svc.LookupAllHostAddr(WithScope(context.Background()), "www.example.com")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(AddrSet{net.IP{10, 0, 0, 1}}, other); diff != "" {
		t.Fatal(diff)
	}
	if calls.Load() != 0 {
		t.Fatal("the real resolver must never run for overridden hosts")
	}
}

func TestSharedCacheIsSharedAcrossScopes(t *testing.T) {
	var calls atomic.Int64
	svc := NewService(nil, nil, newCountingResolver(&calls, []string{"10.0.0.1"}, nil))
	for idx := 0; idx < 3; idx++ {
		ctx := WithScope(context.Background())
		addrs, err := svc.LookupAllHostAddr(ctx, "www.example.com")
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(AddrSet{net.IP{10, 0, 0, 1}}, addrs); diff != "" {
			t.Fatal(diff)
		}
	}
	if calls.Load() != 1 {
		t.Fatal("expected one resolver call across scopes, got", calls.Load())
	}
}

func TestFailuresAreNotCached(t *testing.T) {
	expected := errors.New("mocked error")
	var calls atomic.Int64
	svc := NewService(nil, nil, newCountingResolver(&calls, nil, expected))
	ctx := WithScope(context.Background())
	for idx := 0; idx < 2; idx++ {
		addrs, err := svc.LookupAllHostAddr(ctx, "www.example.com")
		if !errors.Is(err, expected) {
			t.Fatal("not the error we expected", err)
		}
		var resErr *ResolutionError
		if !errors.As(err, &resErr) {
			t.Fatal("expected a ResolutionError wrapper")
		}
		if addrs != nil {
			t.Fatal("expected nil addrs here")
		}
	}
	if calls.Load() != 2 {
		t.Fatal("expected each failed lookup to recompute, got", calls.Load())
	}
}

func TestEmptyResolverAnswerIsUnknownHost(t *testing.T) {
	var calls atomic.Int64
	svc := NewService(nil, nil, newCountingResolver(&calls, []string{}, nil))
	ctx := WithScope(context.Background())
	_, err := svc.LookupAllHostAddr(ctx, "www.example.com")
	if !errors.Is(err, ErrUnknownHost) {
		t.Fatal("not the error we expected", err)
	}
}

func TestOverridesDoNotInvalidateCachedEntries(t *testing.T) {
	var calls atomic.Int64
	svc := NewService(nil, nil, newCountingResolver(&calls, []string{"10.0.0.1"}, nil))
	ctx := WithScope(context.Background())
	before, err := svc.LookupAllHostAddr(ctx, "www.example.com")
	if err != nil {
		t.Fatal(err)
	}
	// Setting an override now is deliberately not enough: the scope
	// keeps serving its cached value until an explicit flush.
	svc.SetOverride(ctx, "www.example.com", "10.0.0.2")
	stale, err := svc.LookupAllHostAddr(ctx, "www.example.com")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(before, stale); diff != "" {
		t.Fatal(diff)
	}
	svc.Scope(ctx).FlushCache()
	fresh, err := svc.LookupAllHostAddr(ctx, "www.example.com")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(AddrSet{net.IP{10, 0, 0, 2}}, fresh); diff != "" {
		t.Fatal(diff)
	}
}

func TestInvalidOverrideAddressFailsLookup(t *testing.T) {
	svc := NewService(nil, nil, newCountingResolver(&atomic.Int64{}, nil, errors.New("should not be called")))
	ctx := WithScope(context.Background())
	svc.SetOverride(ctx, "www.example.com", "not-an-address")
	addrs, err := svc.LookupAllHostAddr(ctx, "www.example.com")
	if !errors.Is(err, ErrInvalidAddressFormat) {
		t.Fatal("not the error we expected", err)
	}
	var resErr *ResolutionError
	if !errors.As(err, &resErr) {
		t.Fatal("expected a ResolutionError wrapper")
	}
	if addrs != nil {
		t.Fatal("expected nil addrs here")
	}
	// The parse failure must not be cached: fixing the override and
	// retrying succeeds immediately.
	svc.SetOverride(ctx, "www.example.com", "10.0.0.7")
	fixed, err := svc.LookupAllHostAddr(ctx, "www.example.com")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(AddrSet{net.IP{10, 0, 0, 7}}, fixed); diff != "" {
		t.Fatal(diff)
	}
}

func TestConcurrentLookupsCollapse(t *testing.T) {
	var calls atomic.Int64
	svc := NewService(nil, nil, newCountingResolver(&calls, []string{"10.0.0.1"}, nil))
	ctx := WithScope(context.Background())
	const parallelism = 16
	var wg sync.WaitGroup
	for idx := 0; idx < parallelism; idx++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			addrs, err := svc.LookupAllHostAddr(ctx, "www.example.com")
			if err != nil {
				panic(err)
			}
			if diff := cmp.Diff(AddrSet{net.IP{10, 0, 0, 1}}, addrs); diff != "" {
				panic(diff)
			}
		}()
	}
	wg.Wait()
	if calls.Load() != 1 {
		t.Fatal("expected a single resolver call, got", calls.Load())
	}
}

func TestIPLiteralsShortCircuit(t *testing.T) {
	var calls atomic.Int64
	svc := NewService(nil, nil, newCountingResolver(&calls, nil, errors.New("should not be called")))
	ctx := WithScope(context.Background())

	t.Run("IPv4", func(t *testing.T) {
		addrs, err := svc.LookupAllHostAddr(ctx, "127.0.0.1")
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(AddrSet{net.IP{127, 0, 0, 1}}, addrs); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("IPv6", func(t *testing.T) {
		addrs, err := svc.LookupAllHostAddr(ctx, "::1")
		if err != nil {
			t.Fatal(err)
		}
		if len(addrs) != 1 || len(addrs[0]) != 16 {
			t.Fatal("unexpected address set", addrs)
		}
	})

	if calls.Load() != 0 {
		t.Fatal("IP literals must never reach the resolver")
	}
}

func TestScopeInheritance(t *testing.T) {
	t.Run("derived contexts share the scope instance", func(t *testing.T) {
		svc := NewService(nil, nil, newCountingResolver(&atomic.Int64{}, nil, errors.New("should not be called")))
		parent := WithScope(context.Background())
		child, cancel := context.WithCancel(parent)
		defer cancel()
		// The override set through the parent after deriving the
		// child is live for the child too.
		svc.SetOverride(parent, "www.example.com", "10.0.0.3")
		addrs, err := svc.LookupAllHostAddr(child, "www.example.com")
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(AddrSet{net.IP{10, 0, 0, 3}}, addrs); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("snapshots copy the overrides once", func(t *testing.T) {
		svc := NewService(nil, nil, newCountingResolver(&atomic.Int64{}, nil, errors.New("should not be called")))
		parent := WithScope(context.Background())
		svc.SetOverride(parent, "before.example", "10.0.0.1")
		snapshot := WithScopeSnapshot(parent)
		svc.SetOverride(parent, "after.example", "10.0.0.2")
		// The snapshot sees the override preceding it...
		addrs, err := svc.LookupAllHostAddr(snapshot, "before.example")
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(AddrSet{net.IP{10, 0, 0, 1}}, addrs); diff != "" {
			t.Fatal(diff)
		}
		// ...but not the one following it.
		if _, err := svc.LookupAllHostAddr(snapshot, "after.example"); err == nil {
			t.Fatal("expected the snapshot to miss the later override")
		}
	})
}

func TestDefaultScopeServesScopelessContexts(t *testing.T) {
	svc := NewService(nil, nil, newCountingResolver(&atomic.Int64{}, nil, errors.New("should not be called")))
	ctx := context.Background()
	svc.SetOverride(ctx, "www.example.com", "10.0.0.9")
	addrs, err := svc.LookupAllHostAddr(ctx, "www.example.com")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(AddrSet{net.IP{10, 0, 0, 9}}, addrs); diff != "" {
		t.Fatal(diff)
	}
}

func TestIDNAHostnames(t *testing.T) {
	var seen atomic.Value
	resolver := &mocks.Resolver{
		MockLookupHost: func(ctx context.Context, domain string) ([]string, error) {
			seen.Store(domain)
			return []string{"10.0.0.1"}, nil
		},
		MockNetwork: func() string { return "mocked" },
		MockAddress: func() string { return "" },
	}
	svc := NewService(nil, nil, resolver)
	ctx := WithScope(context.Background())
	if _, err := svc.LookupAllHostAddr(ctx, "яндекс.рф"); err != nil {
		t.Fatal(err)
	}
	if seen.Load() != "xn--d1acpjx3f.xn--p1ai" {
		t.Fatal("expected the punycoded domain, got", seen.Load())
	}
}

func TestResolverAnswersWithZonesAndGarbage(t *testing.T) {
	resolver := &mocks.Resolver{
		MockLookupHost: func(ctx context.Context, domain string) ([]string, error) {
			return []string{"fe80::1%eth0", "garbage", "10.0.0.1"}, nil
		},
		MockNetwork: func() string { return "mocked" },
		MockAddress: func() string { return "" },
	}
	svc := NewService(nil, nil, resolver)
	addrs, err := svc.LookupAllHostAddr(WithScope(context.Background()), "www.example.com")
	if err != nil {
		t.Fatal(err)
	}
	expect := AddrSet{net.ParseIP("fe80::1"), net.IP{10, 0, 0, 1}}
	if diff := cmp.Diff(expect, addrs); diff != "" {
		t.Fatal(diff)
	}
}

func TestResolutionErrorWrapping(t *testing.T) {
	t.Run("Error mentions the hostname and the cause", func(t *testing.T) {
		err := &ResolutionError{
			Hostname:   "www.example.com",
			WrappedErr: ErrUnknownHost,
		}
		if err.Error() != `dnscope: resolving "www.example.com": unknown host` {
			t.Fatal("unexpected message", err.Error())
		}
	})

	t.Run("newResolutionError never double wraps", func(t *testing.T) {
		inner := newResolutionError("www.example.com", ErrUnknownHost)
		outer := newResolutionError("www.example.com", inner)
		if outer != inner {
			t.Fatal("expected the same wrapper instance")
		}
	})
}
