// Package observability builds the process logger and the Prometheus collectors
// for authentication outcomes, key set refreshes and HTTP requests.
package observability
