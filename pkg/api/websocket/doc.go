// Package websocket streams the progress events of a run to WebSocket
// clients. The stream closes after the run's terminal event.
package websocket
