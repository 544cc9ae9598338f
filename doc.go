// Package wmediumd simulates the wireless medium for a kernel-side
// simulated Wi-Fi radio. The kernel (or a vhost-user guest, or a
// local API client) hands every transmitted 802.11 frame to the
// daemon; the medium decides whether, when, and to whom the frame is
// re-injected as a reception, and what transmit status the sender
// sees. Link quality comes from an explicit SNR matrix, an explicit
// error-probability matrix, or a log-distance path-loss model over
// station positions; contention, multi-rate retries, and optional
// inter-station interference shape the delivery timeline.
package wmediumd
