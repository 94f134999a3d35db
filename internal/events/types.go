package events

// Event types published by the firmware.
const (
	CommandExecuted  = "command.executed"
	CommandRejected  = "command.rejected"
	ChecksumVerified = "checksum.verified"
	ThermalThrottled = "thermal.throttled"
	SchedulerExit    = "scheduler.exit"
	WatchdogAlert    = "watchdog.alert"
)

// CommandPayload accompanies command.executed and command.rejected.
type CommandPayload struct {
	Tenant int     `json:"tenant"`
	Kind   string  `json:"kind"`
	Heat   float32 `json:"heat"`
	Reason string  `json:"reason,omitempty"`
}

// ChecksumPayload accompanies checksum.verified.
type ChecksumPayload struct {
	Tenant int    `json:"tenant"`
	A      uint32 `json:"a"`
	B      uint32 `json:"b"`
	Result uint32 `json:"result"`
	Match  bool   `json:"match"`
}

// ThermalPayload accompanies thermal.throttled.
type ThermalPayload struct {
	Temperature float32 `json:"temperature"`
	Limit       float32 `json:"limit"`
}

// ExitPayload accompanies scheduler.exit.
type ExitPayload struct {
	Tenant int    `json:"tenant"`
	Frames uint32 `json:"frames"`
}

// WatchdogPayload accompanies watchdog.alert.
type WatchdogPayload struct {
	Heartbeat uint64  `json:"heartbeat"`
	Stalls    int     `json:"stalls"`
	Resets    uint32  `json:"resets"`
	Restored  float32 `json:"restored_temperature"`
}

// Transitions the monitor derives by comparing snapshots.
const (
	TenantAttached = "tenant.attached"
	TenantDetached = "tenant.detached"
)

// TenantPayload accompanies tenant.attached and tenant.detached.
type TenantPayload struct {
	Tenant  int    `json:"tenant"`
	PID     uint32 `json:"pid,omitempty"`
	OwnerID string `json:"owner_id,omitempty"`
}
