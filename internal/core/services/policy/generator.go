package policy

import (
	"context"
	"time"

	"github.com/ztlan/warden/internal/core/domain"
	"github.com/ztlan/warden/internal/core/ports"
)

const (
	// rateHeadroom gives devices room above their learned rates before
	// the limit bites.
	rateHeadroom = 1.5

	allowedEntries = 5
)

// Generator derives a least-privilege policy from a finalized baseline:
// allow rules for the top destinations and ports, rate limits with
// headroom, default deny for everything else.
type Generator struct {
	store ports.IdentityStore
}

// NewGenerator builds a generator persisting through the identity store.
func NewGenerator(store ports.IdentityStore) *Generator {
	return &Generator{store: store}
}

// Generate builds and persists the device policy.
func (g *Generator) Generate(ctx context.Context, device *domain.Device, b *domain.Baseline) (*domain.DevicePolicy, error) {
	p := &domain.DevicePolicy{
		DeviceID:    device.DeviceID,
		DefaultDeny: true,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}

	for i, dst := range b.TopDestinations {
		if i >= allowedEntries {
			break
		}
		p.Rules = append(p.Rules, domain.PolicyRule{
			Action:   domain.ActionAllow,
			Match:    map[string]string{domain.MatchEthSrc: device.MAC, domain.MatchIPv4Dst: dst.Key},
			Priority: 200,
			Comment:  "learned destination",
		})
	}
	for i, port := range b.TopPorts {
		if i >= allowedEntries {
			break
		}
		p.Rules = append(p.Rules, domain.PolicyRule{
			Action:   domain.ActionAllow,
			Match:    map[string]string{domain.MatchEthSrc: device.MAC, domain.MatchTCPDst: port.Key},
			Priority: 190,
			Comment:  "learned port",
		})
	}
	p.Rules = append(p.Rules, domain.PolicyRule{
		Action:   domain.ActionDeny,
		Match:    map[string]string{domain.MatchEthSrc: device.MAC},
		Priority: 10,
		Comment:  "default deny",
	})

	if b.AvgPPS > 0 || b.AvgBPS > 0 {
		p.RateLimit = &domain.RateLimit{
			MaxPPS: b.AvgPPS * rateHeadroom,
			MaxBPS: b.AvgBPS * rateHeadroom,
		}
	}

	if err := g.store.SavePolicy(ctx, device.DeviceID, p); err != nil {
		return nil, err
	}
	return p, nil
}
