package domain

import (
	"time"
)

// TaskType classifies what a lease will be used for.
type TaskType string

const (
	TaskScan    TaskType = "SCAN"
	TaskCapture TaskType = "CAPTURE"
	TaskDeauth  TaskType = "DEAUTH"
	TaskMonitor TaskType = "MONITOR"
	TaskInject  TaskType = "INJECT"
)

// TaskState is the lifecycle of a scheduler request.
type TaskState string

const (
	TaskPending   TaskState = "PENDING"
	TaskGranted   TaskState = "GRANTED"
	TaskRunning   TaskState = "RUNNING"
	TaskCompleted TaskState = "COMPLETED"
	TaskFailed    TaskState = "FAILED"
	TaskCancelled TaskState = "CANCELLED"
)

// Requirement is the capability predicate a matched interface must satisfy.
type Requirement struct {
	Monitor   bool     `json:"monitor"`
	Injection bool     `json:"injection"`
	AP        bool     `json:"ap"`
	Band      WiFiBand `json:"band,omitempty"` // empty = any band
	Channel   int      `json:"channel"`        // 0 = any; nonzero must be usable
}

// Matches reports whether the capabilities satisfy the predicate.
func (r Requirement) Matches(c InterfaceCapabilities) bool {
	if r.Monitor && !c.SupportsMonitor {
		return false
	}
	if r.Injection && !c.SupportsInjection {
		return false
	}
	if r.AP && !c.SupportsAP {
		return false
	}
	if r.Band != "" && !c.SupportsBand(r.Band) {
		return false
	}
	if r.Channel != 0 && !c.UsableChannel(r.Channel) {
		return false
	}
	return true
}

// Mode returns the interface mode the requirement implies.
func (r Requirement) Mode() InterfaceMode {
	if r.AP {
		return ModeAP
	}
	return ModeMonitor
}

// Task is a request for exclusive access to one radio interface.
type Task struct {
	ID          string
	Type        TaskType
	Priority    int // 1 is highest; larger is lower
	Requirement Requirement
	Channel     int           // explicit channel, 0 lets the planner choose
	MaxWait     time.Duration // queueing budget before NoCapacityError
}

// Lease is an exclusive grant of one interface to one task.
type Lease struct {
	ID        string        `json:"id"`
	TaskID    string        `json:"task_id"`
	TaskType  TaskType      `json:"task_type"`
	Interface string        `json:"interface"`
	Mode      InterfaceMode `json:"mode"`
	Channel   int           `json:"channel"`
	HopPlan   []int         `json:"hop_plan,omitempty"` // set for SCAN leases
	GrantedAt time.Time     `json:"granted_at"`
}
