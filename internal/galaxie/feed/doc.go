// Package feed fetches the Galaxie REST feeds.
//
// A Client issues one HTTP GET per call against a fixed endpoint for each
// Kind and decodes the JSON body into a Payload: a list of flat records.
// A top-level object is treated as a one-record list and null as an empty
// list. Non-object array members are skipped.
//
// Failures are classified into three error types, each matching a sentinel
// through errors.Is:
//
//	*TransportError  ErrTransport  network failure, timeout or cancellation
//	*UpstreamError   ErrUpstream   non-2xx HTTP status
//	*ParseError      ErrParse      malformed JSON or an unusable top-level shape
//
// The client never retries; the coordinator's next tick is the retry.
package feed
