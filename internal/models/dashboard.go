package models

import (
	"encoding/json"
	"time"
)

// OperatorStatus is the presence state of a call-center agent.
type OperatorStatus string

const (
	OperatorAvailable OperatorStatus = "available"
	OperatorBusy      OperatorStatus = "busy"
	OperatorPaused    OperatorStatus = "paused"
	OperatorOffline   OperatorStatus = "offline"
)

// Operator summarises one agent's activity.
type Operator struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Extension     string         `json:"extension"`
	Status        OperatorStatus `json:"status"`
	CallsHandled  int            `json:"calls_handled"`
	AvgHandleTime int            `json:"avg_handle_time"` // seconds
	Satisfaction  float64        `json:"satisfaction"`
	Efficiency    float64        `json:"efficiency"`
}

// CallStatus is the outcome of a call.
type CallStatus string

const (
	CallAnswered  CallStatus = "answered"
	CallAbandoned CallStatus = "abandoned"
	CallMissed    CallStatus = "missed"
)

// Call is a single inbound or outbound call leg.
type Call struct {
	ID         string     `json:"id"`
	OperatorID string     `json:"operator_id"`
	Queue      string     `json:"queue"`
	Direction  string     `json:"direction"`
	Number     string     `json:"number"`
	StartedAt  time.Time  `json:"started_at"`
	Duration   int        `json:"duration"`  // seconds
	WaitTime   int        `json:"wait_time"` // seconds
	Status     CallStatus `json:"status"`
}

// Metrics aggregates call-center KPIs.
type Metrics struct {
	TotalCalls     int       `json:"total_calls"`
	AnsweredCalls  int       `json:"answered_calls"`
	AbandonedCalls int       `json:"abandoned_calls"`
	AvgWaitTime    float64   `json:"avg_wait_time"`
	AvgDuration    float64   `json:"avg_duration"`
	ServiceLevel   float64   `json:"service_level"`
	Satisfaction   float64   `json:"satisfaction"`
	Efficiency     float64   `json:"efficiency"`
	GeneratedAt    time.Time `json:"generated_at"`
}

// Queue reports the state of one call queue.
type Queue struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Waiting      int     `json:"waiting"`
	ActiveAgents int     `json:"active_agents"`
	AvgWaitTime  int     `json:"avg_wait_time"`
	LongestWait  int     `json:"longest_wait"`
	ServiceLevel float64 `json:"service_level"`
}

// Report is the PBX vendor payload, rendered by the dashboard as-is.
type Report = json.RawMessage
