// Package event defines the messages exchanged between the doorbell tasks.
// Every enumeration here is closed: handlers switch over it and log
// anything they do not recognise.
package event

import "fmt"

// Kind identifies the type of a Message.
type Kind int16

const (
	KindNull Kind = iota
	// KindGpioEdge: IParam=pin, UParam=level, LParam=timestamp in ms.
	KindGpioEdge
	// KindSystem: IParam=SystemSource.
	KindSystem
	// KindIpc: IParam=IpcParam, UParam=optional score.
	KindIpc
	// KindWifiStatus: IParam=WifiEvent.
	KindWifiStatus
	// KindInternetStatus: IParam=InternetStatus.
	KindInternetStatus
	// KindSendMessage: IParam=IpcParam outcome to notify about.
	KindSendMessage
	// KindMessageStatus: IParam=MessageStatus.
	KindMessageStatus
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "Null"
	case KindGpioEdge:
		return "GpioEdge"
	case KindSystem:
		return "System"
	case KindIpc:
		return "Ipc"
	case KindWifiStatus:
		return "WifiStatus"
	case KindInternetStatus:
		return "InternetStatus"
	case KindSendMessage:
		return "SendMessage"
	case KindMessageStatus:
		return "MessageStatus"
	}
	return fmt.Sprintf("Kind(%d)", int16(k))
}

// SystemSource is the sub-kind of a KindSystem message.
type SystemSource int32

const (
	SysInitDone SystemSource = iota
	// SysTimerTick: LParam=timer id.
	SysTimerTick
	SysVbusChange
	SysLowBattery
	// SysButtonClick and friends: UParam=pin.
	SysButtonClick
	SysButtonDoubleClick
	SysButtonLongPress
	SysSerialPtr
)

func (s SystemSource) String() string {
	switch s {
	case SysInitDone:
		return "InitDone"
	case SysTimerTick:
		return "TimerTick"
	case SysVbusChange:
		return "VbusChange"
	case SysLowBattery:
		return "LowBattery"
	case SysButtonClick:
		return "ButtonClick"
	case SysButtonDoubleClick:
		return "ButtonDoubleClick"
	case SysButtonLongPress:
		return "ButtonLongPress"
	case SysSerialPtr:
		return "SerialPtr"
	}
	return fmt.Sprintf("SystemSource(%d)", int32(s))
}

// IpcParam is the sub-kind of KindIpc and KindSendMessage messages.
// The detection values double as the outcome of one inference box.
type IpcParam int32

const (
	IpcNull IpcParam = iota
	IpcNpuStart
	IpcNpuStop
	IpcNoObject
	IpcUnclassified
	IpcStrangerDetected
	IpcTenantDetected
)

func (p IpcParam) String() string {
	switch p {
	case IpcNull:
		return "Null"
	case IpcNpuStart:
		return "NpuStart"
	case IpcNpuStop:
		return "NpuStop"
	case IpcNoObject:
		return "NoObject"
	case IpcUnclassified:
		return "Unclassified"
	case IpcStrangerDetected:
		return "StrangerDetected"
	case IpcTenantDetected:
		return "TenantDetected"
	}
	return fmt.Sprintf("IpcParam(%d)", int32(p))
}

// IsDetection reports whether p names a person the doorbell should notify about.
func (p IpcParam) IsDetection() bool {
	return p == IpcStrangerDetected || p == IpcTenantDetected
}

// IsEmpty reports whether p is an inference outcome without a classified person.
func (p IpcParam) IsEmpty() bool {
	return p == IpcNoObject || p == IpcUnclassified
}

// InternetStatus is the payload of KindInternetStatus.
type InternetStatus int32

const (
	InternetDisconnected InternetStatus = iota
	InternetConnected
)

func (s InternetStatus) String() string {
	if s == InternetConnected {
		return "Connected"
	}
	return "Disconnected"
}

// MessageStatus is the payload of KindMessageStatus.
type MessageStatus int32

const (
	StatusUnknown MessageStatus = iota
	StatusSending
	StatusSentSuccess
	StatusSentFail
)

func (s MessageStatus) String() string {
	switch s {
	case StatusUnknown:
		return "Unknown"
	case StatusSending:
		return "Sending"
	case StatusSentSuccess:
		return "SentSuccess"
	case StatusSentFail:
		return "SentFail"
	}
	return fmt.Sprintf("MessageStatus(%d)", int32(s))
}

// Message is the unit exchanged between tasks. It is a plain value and is
// copied into and out of queues.
type Message struct {
	Event  Kind
	IParam int32
	UParam uint32
	LParam uint32
}

// New builds a Message.
func New(kind Kind, iParam int32, uParam, lParam uint32) Message {
	return Message{Event: kind, IParam: iParam, UParam: uParam, LParam: lParam}
}

func (m Message) String() string {
	var sub string
	switch m.Event {
	case KindSystem:
		sub = SystemSource(m.IParam).String()
	case KindIpc, KindSendMessage:
		sub = IpcParam(m.IParam).String()
	case KindWifiStatus:
		sub = WifiEvent(m.IParam).String()
	case KindInternetStatus:
		sub = InternetStatus(m.IParam).String()
	case KindMessageStatus:
		sub = MessageStatus(m.IParam).String()
	default:
		sub = fmt.Sprintf("%d", m.IParam)
	}
	return fmt.Sprintf("%s/%s u=%d l=%d", m.Event, sub, m.UParam, m.LParam)
}
