// Command shellctl drives a running shell through its HTTP control API.
//
//	shellctl status
//	shellctl apps -category plugin
//	shellctl start mail
//	shellctl send -target system ping_request
//	shellctl send echo_request '{"text":"hi"}'
//	shellctl export registry.json
//
// The server address comes from -addr or SHELL_ADDR.
package main
