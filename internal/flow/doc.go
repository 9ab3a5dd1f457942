// Package flow implements the step-by-step workflows that create config
// entries and edit their options.
//
// A flow is a small state machine. Each step either returns a form to be
// filled in, finishes by creating an entry (or saving options), or aborts
// with a reason. Clients drive flows through the Manager:
//
//	res, _ := m.StartConfig(ctx, flow.SourceUser, false)  // form "user"
//	res, _ = m.Configure(ctx, res.FlowID, flow.Input{     // create_entry
//	    "host":         "192.168.1.50",
//	    "device_class": "androidtv",
//	})
//
// Config flow steps:
//
//	user      host, device_class, port (+ adbkey, adb_server_ip,
//	          adb_server_port in advanced mode)
//	zeroconf  pick a host found by mDNS, then continue with "user"
//
// Options flow steps:
//
//	init      switches plus selectors that branch into the steps below
//	apps      name an app, or delete it
//	commands  override a shell command; an empty value deletes it
//	rules     per-app state detection rules as JSON
//
// Form errors use the keys key_and_server, adbkey_not_file, cannot_connect,
// unknown and invalid_det_rules. Abort reasons are already_configured and
// invalid_unique_id.
//
// Flows that are not advanced within their TTL are dropped.
package flow
