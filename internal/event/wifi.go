package event

import "fmt"

// WifiEvent is the payload of KindWifiStatus, as reported by the link monitor.
type WifiEvent int32

const (
	WifiReady WifiEvent = iota
	WifiScanDone
	WifiStaStart
	WifiStaStop
	WifiStaConnected
	WifiStaDisconnected
	WifiStaAuthModeChange
	WifiStaGotIP
	WifiStaLostIP
	WifiStaGotIP6
	WifiEthStart
	WifiEthStop
	WifiEthConnected
	WifiEthDisconnected
	WifiEthGotIP
)

var wifiNames = map[WifiEvent]string{
	WifiReady:             "WifiReady",
	WifiScanDone:          "ScanDone",
	WifiStaStart:          "StaStart",
	WifiStaStop:           "StaStop",
	WifiStaConnected:      "StaConnected",
	WifiStaDisconnected:   "StaDisconnected",
	WifiStaAuthModeChange: "StaAuthModeChange",
	WifiStaGotIP:          "StaGotIP",
	WifiStaLostIP:         "StaLostIP",
	WifiStaGotIP6:         "StaGotIP6",
	WifiEthStart:          "EthStart",
	WifiEthStop:           "EthStop",
	WifiEthConnected:      "EthConnected",
	WifiEthDisconnected:   "EthDisconnected",
	WifiEthGotIP:          "EthGotIP",
}

var wifiDescriptions = map[WifiEvent]string{
	WifiReady:             "network interface ready",
	WifiScanDone:          "access point scan completed",
	WifiStaStart:          "station started",
	WifiStaStop:           "station stopped",
	WifiStaConnected:      "associated with access point",
	WifiStaDisconnected:   "disassociated from access point",
	WifiStaAuthModeChange: "access point auth mode changed",
	WifiStaGotIP:          "obtained IPv4 address",
	WifiStaLostIP:         "lost IPv4 address",
	WifiStaGotIP6:         "obtained IPv6 address",
	WifiEthStart:          "ethernet started",
	WifiEthStop:           "ethernet stopped",
	WifiEthConnected:      "ethernet link up",
	WifiEthDisconnected:   "ethernet link down",
	WifiEthGotIP:          "ethernet obtained IPv4 address",
}

func (w WifiEvent) String() string {
	if s, ok := wifiNames[w]; ok {
		return s
	}
	return fmt.Sprintf("WifiEvent(%d)", int32(w))
}

// Description returns a human readable explanation for logs.
func (w WifiEvent) Description() string {
	if s, ok := wifiDescriptions[w]; ok {
		return s
	}
	return fmt.Sprintf("unknown event: %d", int32(w))
}
