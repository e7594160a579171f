package bridge

import (
	"math"
	"time"
)

// ROS message payloads carried in publish frames. Field names and shapes
// follow the ROS 2 JSON encoding used by rosbridge.

// Stamp is a ROS time stamp.
type Stamp struct {
	Sec     int64 `json:"sec"`
	Nanosec int64 `json:"nanosec"`
}

// Now returns the current time as a Stamp.
func Now() Stamp {
	t := time.Now()
	return Stamp{Sec: t.Unix(), Nanosec: int64(t.Nanosecond())}
}

// Header is a std_msgs/Header.
type Header struct {
	Stamp   Stamp  `json:"stamp"`
	FrameID string `json:"frame_id"`
}

// Vector3 is a geometry_msgs/Vector3.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Twist is a geometry_msgs/Twist velocity command.
type Twist struct {
	Linear  Vector3 `json:"linear"`
	Angular Vector3 `json:"angular"`
}

// PlanarTwist builds a Twist for a differential-drive base: forward
// velocity in m/s and yaw rate in rad/s.
func PlanarTwist(linear, angular float64) Twist {
	return Twist{
		Linear:  Vector3{X: linear},
		Angular: Vector3{Z: angular},
	}
}

// ZeroTwist is the explicit stop command.
func ZeroTwist() Twist {
	return Twist{}
}

// Point is a geometry_msgs/Point.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Quaternion is a geometry_msgs/Quaternion.
type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// YawQuaternion converts a planar yaw angle to a quaternion about Z.
func YawQuaternion(yaw float64) Quaternion {
	return Quaternion{
		Z: math.Sin(yaw / 2),
		W: math.Cos(yaw / 2),
	}
}

// Yaw extracts the planar yaw angle from the quaternion.
func (q Quaternion) Yaw() float64 {
	return 2 * math.Atan2(q.Z, q.W)
}

// Pose is a geometry_msgs/Pose.
type Pose struct {
	Position    Point      `json:"position"`
	Orientation Quaternion `json:"orientation"`
}

// PoseStamped is a geometry_msgs/PoseStamped.
type PoseStamped struct {
	Header Header `json:"header"`
	Pose   Pose   `json:"pose"`
}

// MapPose builds a PoseStamped in the map frame from planar coordinates.
func MapPose(x, y, yaw float64) PoseStamped {
	return PoseStamped{
		Header: Header{Stamp: Now(), FrameID: "map"},
		Pose: Pose{
			Position:    Point{X: x, Y: y},
			Orientation: YawQuaternion(yaw),
		},
	}
}

// PoseWithCovariance is a geometry_msgs/PoseWithCovariance.
type PoseWithCovariance struct {
	Pose       Pose        `json:"pose"`
	Covariance [36]float64 `json:"covariance"`
}

// PoseWithCovarianceStamped is published on /amcl_pose and /initialpose.
type PoseWithCovarianceStamped struct {
	Header Header             `json:"header"`
	Pose   PoseWithCovariance `json:"pose"`
}

// Odometry is a nav_msgs/Odometry, trimmed to the fields the suite reads.
type Odometry struct {
	Header Header             `json:"header"`
	Pose   PoseWithCovariance `json:"pose"`
	Twist  struct {
		Twist Twist `json:"twist"`
	} `json:"twist"`
}

// BatteryState is a sensor_msgs/BatteryState, trimmed. Percentage is
// 0-100 as the robot firmware reports it.
type BatteryState struct {
	Header     Header  `json:"header"`
	Voltage    float64 `json:"voltage"`
	Percentage float64 `json:"percentage"`
}

// LaserScan is a sensor_msgs/LaserScan, trimmed.
type LaserScan struct {
	Header   Header    `json:"header"`
	AngleMin float64   `json:"angle_min"`
	AngleMax float64   `json:"angle_max"`
	RangeMin float64   `json:"range_min"`
	RangeMax float64   `json:"range_max"`
	Ranges   []float64 `json:"ranges"`
}

// IMU is a sensor_msgs/Imu, trimmed.
type IMU struct {
	Header             Header     `json:"header"`
	Orientation        Quaternion `json:"orientation"`
	AngularVelocity    Vector3    `json:"angular_velocity"`
	LinearAcceleration Vector3    `json:"linear_acceleration"`
}

// CompressedImage is a sensor_msgs/CompressedImage. Data is base64 as
// rosbridge encodes byte arrays.
type CompressedImage struct {
	Header Header `json:"header"`
	Format string `json:"format"`
	Data   string `json:"data"`
}

// AudioData is an audio_common_msgs/AudioData frame, base64 payload.
type AudioData struct {
	Data string `json:"data"`
}

// Diagnostic levels per diagnostic_msgs/DiagnosticStatus.
const (
	DiagnosticOK    = 0
	DiagnosticWarn  = 1
	DiagnosticError = 2
	DiagnosticStale = 3
)

// KeyValue is a diagnostic_msgs/KeyValue.
type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// DiagnosticStatus is a diagnostic_msgs/DiagnosticStatus.
type DiagnosticStatus struct {
	Level   int        `json:"level"`
	Name    string     `json:"name"`
	Message string     `json:"message"`
	Values  []KeyValue `json:"values"`
}

// DiagnosticArray is a diagnostic_msgs/DiagnosticArray.
type DiagnosticArray struct {
	Header Header             `json:"header"`
	Status []DiagnosticStatus `json:"status"`
}

// NavigateToPoseGoal is the args payload for the Nav2 NavigateToPose
// action.
type NavigateToPoseGoal struct {
	Pose PoseStamped `json:"pose"`
}

// NavigateToPoseFeedback is the feedback payload, trimmed.
type NavigateToPoseFeedback struct {
	CurrentPose       PoseStamped `json:"current_pose"`
	DistanceRemaining float64     `json:"distance_remaining"`
}
