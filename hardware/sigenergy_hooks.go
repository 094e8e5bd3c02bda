// Package hardware implements the four battery command hooks against a
// real plant controller, grounded on sigenergy/modbus_client.go.
package hardware

import (
	"context"
	"fmt"
	"sync"

	"github.com/devskill-org/battery-optimizer/sigenergy"
)

// remoteEMSMode values, per sigenergy/modbus_client.go's SetRemoteEMSMode
// documentation.
const (
	modeMaxSelfConsumption         = 2
	modeCommandChargingGridFirst   = 3
	modeCommandDischargingESSFirst = 6
)

// SigenergyHooks implements providers.HookExecutor against a Sigenergy-class
// plant over Modbus, deduplicating on the last-issued logical state so a
// repeated Action (spec.md §6: "only state transitions cause a hook
// invocation") does not re-issue redundant register writes.
type SigenergyHooks struct {
	client *sigenergy.SigenModbusClient

	mu    sync.Mutex
	state string // "", "charge", "discharge"
}

// NewSigenergyHooks wraps an already-connected Modbus client.
func NewSigenergyHooks(client *sigenergy.SigenModbusClient) *SigenergyHooks {
	return &SigenergyHooks{client: client}
}

func (h *SigenergyHooks) ChargeStart(ctx context.Context, limitKw float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == "charge" {
		return nil
	}
	if err := h.client.EnableRemoteEMS(true); err != nil {
		return fmt.Errorf("hardware: enable remote ems: %w", err)
	}
	if err := h.client.SetRemoteEMSMode(modeCommandChargingGridFirst); err != nil {
		return fmt.Errorf("hardware: set charge mode: %w", err)
	}
	if err := h.client.SetESSMaxChargingLimit(limitKw); err != nil {
		return fmt.Errorf("hardware: set charge limit: %w", err)
	}
	h.state = "charge"
	return nil
}

func (h *SigenergyHooks) ChargeStop(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != "charge" {
		return nil
	}
	if err := h.client.SetRemoteEMSMode(modeMaxSelfConsumption); err != nil {
		return fmt.Errorf("hardware: clear charge mode: %w", err)
	}
	h.state = ""
	return nil
}

func (h *SigenergyHooks) DischargeStart(ctx context.Context, limitKw float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == "discharge" {
		return nil
	}
	if err := h.client.EnableRemoteEMS(true); err != nil {
		return fmt.Errorf("hardware: enable remote ems: %w", err)
	}
	if err := h.client.SetRemoteEMSMode(modeCommandDischargingESSFirst); err != nil {
		return fmt.Errorf("hardware: set discharge mode: %w", err)
	}
	if err := h.client.SetESSMaxDischargingLimit(limitKw); err != nil {
		return fmt.Errorf("hardware: set discharge limit: %w", err)
	}
	h.state = "discharge"
	return nil
}

func (h *SigenergyHooks) DischargeStop(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != "discharge" {
		return nil
	}
	if err := h.client.SetRemoteEMSMode(modeMaxSelfConsumption); err != nil {
		return fmt.Errorf("hardware: clear discharge mode: %w", err)
	}
	h.state = ""
	return nil
}
