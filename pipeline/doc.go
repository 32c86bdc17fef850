// Package pipeline is a small data pipeline driven by the objection
// coordinator. It exists to exercise shutdown-by-quiescence end to end.
//
//	stimulus ── splitter ── behavior ── observer
//	                   \_______________/
//
// The stimulus holds an objection while it generates samples. The observer's
// checker holds one for every comparison it has started. When both are idle
// for the drain time the coordinator stops the kernel.
package pipeline
