package androidtv

import (
	"strings"
)

// Properties are the static facts read from a device once after connecting.
type Properties struct {
	Manufacturer string `json:"manufacturer,omitempty"`
	Model        string `json:"model,omitempty"`
	SerialNo     string `json:"serialno,omitempty"`
	SWVersion    string `json:"sw_version,omitempty"`
	WifiMAC      string `json:"wifimac,omitempty"`
	EthMAC       string `json:"ethmac,omitempty"`
}

// invalidMACs are placeholder addresses some devices report.
var invalidMACs = map[string]bool{
	"ff:ff:ff:ff:ff:ff": true,
}

// MAC returns the formatted MAC address used as the unique id of a device.
// The Ethernet address wins over Wi-Fi; placeholder addresses are skipped.
// An empty string means no usable address was reported.
func MAC(props Properties) string {
	for _, raw := range []string{props.EthMAC, props.WifiMAC} {
		if raw == "" {
			continue
		}
		mac := FormatMAC(raw)
		if !invalidMACs[mac] {
			return mac
		}
	}
	return ""
}

// FormatMAC normalises a MAC address to lower-case colon-separated form.
// Input that does not contain exactly 12 hex digits is returned lower-cased
// and otherwise unchanged.
func FormatMAC(mac string) string {
	mac = strings.ToLower(strings.TrimSpace(mac))

	var hex []byte
	for i := 0; i < len(mac); i++ {
		c := mac[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f':
			hex = append(hex, c)
		case c == ':' || c == '-' || c == '.':
		default:
			return mac
		}
	}
	if len(hex) != 12 {
		return mac
	}

	var b strings.Builder
	for i := 0; i < 12; i += 2 {
		if i > 0 {
			b.WriteByte(':')
		}
		b.Write(hex[i : i+2])
	}
	return b.String()
}

// DetectClass resolves ClassAuto from the device manufacturer.
func DetectClass(requested DeviceClass, props Properties) DeviceClass {
	if requested != ClassAuto {
		return requested
	}
	if strings.EqualFold(props.Manufacturer, "Amazon") {
		return ClassFireTV
	}
	return ClassAndroidTV
}
