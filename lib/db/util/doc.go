// Package util provides utility components for the storage engine.
//
// The package contains:
//   - queue: A lock-free Multi-Producer Single-Consumer (MPSC) queue implementation built for
//     high throughput and low latency. It feeds the event loop of every engine.
package util
