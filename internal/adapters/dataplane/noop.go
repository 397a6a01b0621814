// Package dataplane holds rule installer implementations. The concrete
// southbound protocol lives outside this repository; what ships here is
// the degraded-mode null object and an in-memory installer used for
// standalone deployments and tests.
package dataplane

import (
	"context"
	"log/slog"

	"github.com/ztlan/warden/internal/core/domain"
	"github.com/ztlan/warden/internal/core/ports"
)

// NoopInstaller is the null-object rule installer. The control plane
// keeps full decision state; enforcement is simply absent.
type NoopInstaller struct{}

var _ ports.RuleInstaller = (*NoopInstaller)(nil)

// NewNoop returns a rule installer that accepts everything and
// programs nothing.
func NewNoop() *NoopInstaller { return &NoopInstaller{} }

func (n *NoopInstaller) Install(ctx context.Context, deviceID string, action domain.PolicyAction, match map[string]string, priority int) error {
	slog.Debug("dataplane disabled, rule not installed", "device_id", deviceID, "action", string(action))
	return nil
}

func (n *NoopInstaller) Remove(ctx context.Context, deviceID string) error { return nil }

func (n *NoopInstaller) QueryFlows(ctx context.Context, switchID string) ([]*domain.FlowSample, error) {
	return nil, nil
}

func (n *NoopInstaller) SwitchIDs(ctx context.Context) ([]string, error) { return nil, nil }
