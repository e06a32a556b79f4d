package event

import "time"

// ControllerState is the alert controller's state block. It is owned by the
// main task; copies are handed to observers.
type ControllerState struct {
	InternetConnected        bool
	MessageSending           bool
	IdleSeconds              uint32
	ConsecutiveNoObjectTicks uint32
	// LastNotifiedOutcome is IpcNull until the first notification or disarm.
	LastNotifiedOutcome IpcParam
	InferenceArmed      bool
}

// Activity names what a Report is about.
type Activity string

const (
	ActivityStartup   Activity = "STARTUP"
	ActivityArmed     Activity = "ARMED"
	ActivityDisarmed  Activity = "DISARMED"
	ActivityDetection Activity = "DETECTION"
	ActivityNotify    Activity = "NOTIFY"
	ActivityDelivery  Activity = "DELIVERY"
	ActivityInternet  Activity = "INTERNET"
	ActivityButton    Activity = "BUTTON"
	ActivityIdle      Activity = "IDLE"
)

// Report describes one observable change made by the alert controller.
type Report struct {
	Time     time.Time
	Activity Activity
	// Outcome is set for ARMED, DISARMED, DETECTION and NOTIFY.
	Outcome IpcParam
	// Status is set for DELIVERY.
	Status MessageStatus
	// Gesture and Pin are set for BUTTON.
	Gesture SystemSource
	Pin     int
	State   ControllerState
}
