// Package discovery browses the LAN over mDNS for Android TV and Fire TV
// devices so the setup flow can offer them instead of asking for a host.
//
// Devices advertise _adb-tls-connect._tcp when wireless debugging is on and
// _androidtvremote2._tcp when the Android TV remote service runs. Either
// record gives the host; the ADB port is chosen in the setup flow.
package discovery
