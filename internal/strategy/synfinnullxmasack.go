package strategy

import (
	"net"

	"prtip/internal/codec"
	"prtip/internal/core/model"
)

// BuildSYN builds a raw TCP SYN probe (spec §4.7's SYN row: SYN/ACK ⇒ Open,
// RST ⇒ Closed, no reply ⇒ Filtered).
func BuildSYN(srcIP, dstIP net.IP, dstPort uint16, evasion model.EvasionFlags) (*RawProbe, error) {
	return buildRawTCP(srcIP, dstIP, srcPortFor(evasion), dstPort, codec.FlagSYN, evasion)
}

// BuildFIN builds a raw TCP FIN probe (RST ⇒ Closed; no reply ⇒ Open|Filtered).
func BuildFIN(srcIP, dstIP net.IP, dstPort uint16, evasion model.EvasionFlags) (*RawProbe, error) {
	return buildRawTCP(srcIP, dstIP, srcPortFor(evasion), dstPort, codec.FlagFIN, evasion)
}

// BuildNULL builds a raw TCP probe with no flags set (same interpretation as FIN).
func BuildNULL(srcIP, dstIP net.IP, dstPort uint16, evasion model.EvasionFlags) (*RawProbe, error) {
	return buildRawTCP(srcIP, dstIP, srcPortFor(evasion), dstPort, 0, evasion)
}

// BuildXmas builds a raw TCP probe with FIN+PSH+URG set (same interpretation as FIN).
func BuildXmas(srcIP, dstIP net.IP, dstPort uint16, evasion model.EvasionFlags) (*RawProbe, error) {
	return buildRawTCP(srcIP, dstIP, srcPortFor(evasion), dstPort, codec.FlagFIN|codec.FlagPSH|codec.FlagURG, evasion)
}

// BuildACK builds a raw TCP ACK probe (RST ⇒ Unfiltered; no reply/ICMP ⇒ Filtered).
func BuildACK(srcIP, dstIP net.IP, dstPort uint16, evasion model.EvasionFlags) (*RawProbe, error) {
	return buildRawTCP(srcIP, dstIP, srcPortFor(evasion), dstPort, codec.FlagACK, evasion)
}

// InterpretSYN classifies the reply to a SYN probe.
func InterpretSYN(gotReply bool, tcpFlags int) model.PortState {
	if !gotReply {
		return model.StateFiltered
	}
	if tcpFlags&codec.FlagRST != 0 {
		return model.StateClosed
	}
	if tcpFlags&codec.FlagSYN != 0 && tcpFlags&codec.FlagACK != 0 {
		return model.StateOpen
	}
	return model.StateFiltered
}

// InterpretFINNULLXmas classifies the reply to FIN/NULL/Xmas probes: these
// three variants share the same interpretation table (spec §4.7).
func InterpretFINNULLXmas(gotReply bool, tcpFlags int) model.PortState {
	if !gotReply {
		return model.StateOpenFiltered
	}
	if tcpFlags&codec.FlagRST != 0 {
		return model.StateClosed
	}
	return model.StateOpenFiltered
}

// InterpretACK classifies the reply to an ACK probe (used for firewall mapping).
func InterpretACK(gotReply bool, tcpFlags int, icmpUnreachable bool) model.PortState {
	if gotReply && tcpFlags&codec.FlagRST != 0 {
		return model.StateUnfiltered
	}
	return model.StateFiltered
}
