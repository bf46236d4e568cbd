// Package modules holds the modules the shell ships with.
//
// The system module answers runtime queries (system_info_request,
// system_time_request, ping_request) and keeps a bounded log that other
// modules post to with system_log_request. Echo is a plugin main: a
// manifest with main "echo" gets a module that answers echo_request.
package modules
