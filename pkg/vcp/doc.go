// Package vcp holds the types shared by the vcpclient components: the
// Message frame value, the bounded Queue that decouples the wire from the
// application, the error taxonomy and the session monitor hooks.
//
// Data flows through two queues:
//
//	dispatch producer -> outbound queue -> write pump -> wire
//	wire -> read pump -> inbound queue -> dispatch consumer
package vcp
