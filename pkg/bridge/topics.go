package bridge

// Topic and message type constants for the TurtleBot3 stack.

// TopicCmdVel is the velocity command topic.
// Publishes: geometry_msgs/Twist
const TopicCmdVel = "/cmd_vel"

// TopicBattery is the battery state topic.
// Subscribes: sensor_msgs/BatteryState
const TopicBattery = "/battery_state"

// TopicScan is the lidar scan topic.
// Subscribes: sensor_msgs/LaserScan
const TopicScan = "/scan"

// TopicIMU is the inertial measurement topic.
// Subscribes: sensor_msgs/Imu
const TopicIMU = "/imu"

// TopicOdom is the wheel odometry topic.
// Subscribes: nav_msgs/Odometry
const TopicOdom = "/odom"

// TopicAMCLPose is the localization pose estimate topic.
// Subscribes: geometry_msgs/PoseWithCovarianceStamped
const TopicAMCLPose = "/amcl_pose"

// TopicInitialPose seeds the localizer.
// Publishes: geometry_msgs/PoseWithCovarianceStamped
const TopicInitialPose = "/initialpose"

// TopicDiagnostics carries health reports.
// Publishes: diagnostic_msgs/DiagnosticArray
const TopicDiagnostics = "/diagnostics"

// TopicCameraImage is the compressed camera stream.
// Subscribes: sensor_msgs/CompressedImage
const TopicCameraImage = "/camera/image_raw/compressed"

// TopicAudio is the microphone capture stream.
// Subscribes: audio_common_msgs/AudioData (Opus frames)
const TopicAudio = "/audio"

// TopicAudioOut is the speaker playback stream.
// Publishes: audio_common_msgs/AudioData (PCM16)
const TopicAudioOut = "/audio/play"

// ROS message type strings for advertise/subscribe frames.
const (
	TypeTwist           = "geometry_msgs/msg/Twist"
	TypeBatteryState    = "sensor_msgs/msg/BatteryState"
	TypeLaserScan       = "sensor_msgs/msg/LaserScan"
	TypeIMU             = "sensor_msgs/msg/Imu"
	TypeOdometry        = "nav_msgs/msg/Odometry"
	TypePoseWithCov     = "geometry_msgs/msg/PoseWithCovarianceStamped"
	TypeDiagnosticArray = "diagnostic_msgs/msg/DiagnosticArray"
	TypeCompressedImage = "sensor_msgs/msg/CompressedImage"
	TypeAudioData       = "audio_common_msgs/msg/AudioData"
)

// Nav2 action names and types.
const (
	ActionNavigateToPose     = "/navigate_to_pose"
	ActionTypeNavigateToPose = "nav2_msgs/action/NavigateToPose"
)

// Topics builds fully-qualified topic names for a robot namespace.
type Topics struct {
	ns string
}

// NewTopics creates a Topics helper. An empty namespace yields the bare
// topic names.
func NewTopics(namespace string) *Topics {
	return &Topics{ns: namespace}
}

// Resolve prefixes the topic with the namespace.
func (t *Topics) Resolve(topic string) string {
	if t.ns == "" {
		return topic
	}
	return t.ns + topic
}

// CmdVel returns the namespaced velocity command topic.
func (t *Topics) CmdVel() string { return t.Resolve(TopicCmdVel) }

// Battery returns the namespaced battery topic.
func (t *Topics) Battery() string { return t.Resolve(TopicBattery) }

// Scan returns the namespaced lidar topic.
func (t *Topics) Scan() string { return t.Resolve(TopicScan) }

// IMU returns the namespaced IMU topic.
func (t *Topics) IMU() string { return t.Resolve(TopicIMU) }

// Odom returns the namespaced odometry topic.
func (t *Topics) Odom() string { return t.Resolve(TopicOdom) }

// AMCLPose returns the namespaced localization topic.
func (t *Topics) AMCLPose() string { return t.Resolve(TopicAMCLPose) }

// InitialPose returns the namespaced initial pose topic.
func (t *Topics) InitialPose() string { return t.Resolve(TopicInitialPose) }

// Diagnostics returns the namespaced diagnostics topic.
func (t *Topics) Diagnostics() string { return t.Resolve(TopicDiagnostics) }

// CameraImage returns the namespaced camera topic.
func (t *Topics) CameraImage() string { return t.Resolve(TopicCameraImage) }

// Audio returns the namespaced audio capture topic.
func (t *Topics) Audio() string { return t.Resolve(TopicAudio) }

// AudioOut returns the namespaced audio playback topic.
func (t *Topics) AudioOut() string { return t.Resolve(TopicAudioOut) }

// NavigateToPose returns the namespaced Nav2 action name.
func (t *Topics) NavigateToPose() string { return t.Resolve(ActionNavigateToPose) }
