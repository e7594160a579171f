// Package health watches sensor freshness, battery level, and host
// resources, and decides whether the robot is fit to accept work.
//
// Sensor updates arrive over the rosbridge bus; a source that stops
// reporting drifts from ok to warning to error as its data ages. The
// monitor republishes its verdict as a diagnostic_msgs/DiagnosticArray
// so standard ROS tooling can display it.
package health

import (
	"fmt"
	"time"

	"github.com/asadbey/turtlebot3-automation/pkg/bridge"
)

// Condition is the assessed state of one health source.
type Condition string

const (
	// ConditionUnknown means no data has ever arrived for the source.
	ConditionUnknown Condition = "unknown"
	ConditionOk      Condition = "ok"
	ConditionWarning Condition = "warning"
	ConditionError   Condition = "error"
)

// DiagnosticLevel maps a condition to diagnostic_msgs levels.
func (c Condition) DiagnosticLevel() int {
	switch c {
	case ConditionOk:
		return bridge.DiagnosticOK
	case ConditionWarning:
		return bridge.DiagnosticWarn
	case ConditionError:
		return bridge.DiagnosticError
	default:
		return bridge.DiagnosticStale
	}
}

// Source identifies a monitored input.
type Source string

const (
	SourceBattery Source = "battery"
	SourceScan    Source = "scan"
	SourceIMU     Source = "imu"
	SourcePose    Source = "pose"
)

// Sources lists all monitored inputs in report order.
var Sources = []Source{SourceBattery, SourceScan, SourceIMU, SourcePose}

// SensorHealth is the assessment of one source.
type SensorHealth struct {
	Source     Source    `json:"source"`
	Condition  Condition `json:"condition"`
	AgeSeconds float64   `json:"age_seconds"`
	Message    string    `json:"message,omitempty"`
}

// Report is a full health snapshot.
type Report struct {
	Healthy        bool           `json:"healthy"`
	Sensors        []SensorHealth `json:"sensors"`
	BatteryPercent float64        `json:"battery_percent"`
	BatteryVoltage float64        `json:"battery_voltage"`
	CPUPercent     float64        `json:"cpu_percent"`
	MemoryPercent  float64        `json:"memory_percent"`
	ResourcesOk    bool           `json:"resources_ok"`
	CheckedAt      time.Time      `json:"checked_at"`
}

// Sensor returns the assessment for one source, or an unknown
// placeholder if the report does not carry it.
func (r Report) Sensor(src Source) SensorHealth {
	for _, s := range r.Sensors {
		if s.Source == src {
			return s
		}
	}
	return SensorHealth{Source: src, Condition: ConditionUnknown}
}

// Diagnostics converts the report to a diagnostic_msgs/DiagnosticArray.
func (r Report) Diagnostics() bridge.DiagnosticArray {
	arr := bridge.DiagnosticArray{
		Header: bridge.Header{Stamp: bridge.Now()},
		Status: make([]bridge.DiagnosticStatus, 0, len(r.Sensors)+1),
	}
	for _, s := range r.Sensors {
		st := bridge.DiagnosticStatus{
			Level:   s.Condition.DiagnosticLevel(),
			Name:    "turtlebot: " + string(s.Source),
			Message: s.Message,
			Values: []bridge.KeyValue{
				{Key: "age_seconds", Value: fmt.Sprintf("%.1f", s.AgeSeconds)},
			},
		}
		if s.Source == SourceBattery {
			st.Values = append(st.Values,
				bridge.KeyValue{Key: "percentage", Value: fmt.Sprintf("%.1f", r.BatteryPercent)},
				bridge.KeyValue{Key: "voltage", Value: fmt.Sprintf("%.2f", r.BatteryVoltage)},
			)
		}
		arr.Status = append(arr.Status, st)
	}

	resLevel := bridge.DiagnosticOK
	resMsg := "resources nominal"
	if !r.ResourcesOk {
		resLevel = bridge.DiagnosticWarn
		resMsg = "resource usage above ceiling"
	}
	arr.Status = append(arr.Status, bridge.DiagnosticStatus{
		Level:   resLevel,
		Name:    "turtlebot: resources",
		Message: resMsg,
		Values: []bridge.KeyValue{
			{Key: "cpu_percent", Value: fmt.Sprintf("%.1f", r.CPUPercent)},
			{Key: "memory_percent", Value: fmt.Sprintf("%.1f", r.MemoryPercent)},
		},
	})
	return arr
}
