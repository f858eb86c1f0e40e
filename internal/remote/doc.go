// Package remote defines the contract between the client core (session,
// catalog and authflow) and the data service: the operations the core may
// call, the session and auth-event types, and the error taxonomy every
// implementation reports through.
//
// Two implementations exist: remote/local calls the service in-process and
// remote/rest talks to it over HTTP.
package remote
